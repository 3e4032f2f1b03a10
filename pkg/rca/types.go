package rca

import (
	"time"

	"github.com/crimson-sun/rca/internal/model"
)

// Mode selects which stages run and under what time budget.
type Mode = model.Mode

const (
	ModeBasic  = model.ModeBasic
	ModeScan   = model.ModeScan
	ModeQuick  = model.ModeQuick
	ModeTriage = model.ModeTriage
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) { return model.ParseMode(s) }

// Package is the evidence package handed to a summarization consumer.
type Package = model.EvidencePackage

// Request is one diagnosis.
type Request struct {
	Mode        Mode
	Description string        // free-text symptom; required
	LogPath     string        // required for Basic, optional for Triage
	Hours       int           // scan window; zero uses the configured default
	Roots       []string      // overrides the configured scan roots
	Budget      time.Duration // overrides the Triage deadline
	Scan        bool          // Triage also scans the system
}

// Rule describes one catalog rule.
type Rule struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Severity   string   `json:"severity"`
	Confidence float64  `json:"confidence"`
	Pattern    string   `json:"pattern"`
	AppliesTo  []string `json:"applies_to,omitempty"`
}
