package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which pipeline stages run and under what time budget.
type Mode string

const (
	ModeBasic  Mode = "basic"
	ModeScan   Mode = "scan"
	ModeQuick  Mode = "quick"
	ModeTriage Mode = "triage"
)

// ParseMode parses a mode name. "system_scan" is accepted for scan.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return ModeBasic, nil
	case "scan", "system_scan", "system-scan":
		return ModeScan, nil
	case "quick":
		return ModeQuick, nil
	case "triage":
		return ModeTriage, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// EvidencePackage is the terminal artifact of a run, handed to the
// summarization consumer. The core keeps no reference after returning it.
type EvidencePackage struct {
	RunID            string            `json:"run_id"`
	Mode             Mode              `json:"mode"`
	Description      string            `json:"description"`
	Hypothesis       ErrorCategory     `json:"hypothesis,omitempty"`
	Findings         []ErrorFinding    `json:"findings"`
	Assessment       ImpactAssessment  `json:"assessment"`
	SourcesScanned   []LogSource       `json:"sources_scanned"`
	ElapsedMS        int64             `json:"elapsed_ms"`
	TruncatedSources []LogSource       `json:"truncated_sources"`
	Partial          bool              `json:"partial"`
	Errors           []SourceError     `json:"errors,omitempty"`
	Resources        *ResourceSignals  `json:"resources,omitempty"`
	Containers       []ContainerSignal `json:"containers,omitempty"`
	CatalogVersion   string            `json:"catalog_version"`
	EstimatedTokens  int               `json:"estimated_tokens"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// Elapsed returns the run duration.
func (p *EvidencePackage) Elapsed() time.Duration {
	return time.Duration(p.ElapsedMS) * time.Millisecond
}
