// Package report maps the orchestrator's terminal state onto the evidence
// package schema. Assembly only copies fields and applies the ordering rule:
// sources by last_modified descending then path, findings grouped by source
// in that order.
package report

import (
	"sort"
	"time"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
)

// State is everything a run produced.
type State struct {
	RunID          string
	Mode           model.Mode
	Description    string
	Hypothesis     model.ErrorCategory
	Findings       []model.ErrorFinding
	Assessment     model.ImpactAssessment
	Sources        []model.LogSource
	Truncated      []model.LogSource
	Errors         []model.SourceError
	Resources      *model.ResourceSignals
	Containers     []model.ContainerSignal
	Partial        bool
	CatalogVersion string
	Started        time.Time
	Finished       time.Time

	// SevereFirst moves findings whose Severity is High or Critical ahead
	// of the rest, keeping the source order within each group.
	SevereFirst bool
	// Severity returns a finding's effective level; nil uses BaseSeverity.
	Severity func(model.ErrorFinding) model.ImpactLevel
}

// Assemble builds the package. A finding whose source is missing from
// Sources has its source added, so every finding references a scanned source.
func Assemble(s State) *model.EvidencePackage {
	sources := uniqueSources(s.Sources)
	known := make(map[string]bool, len(sources))
	for _, src := range sources {
		known[src.Key()] = true
	}
	for _, f := range s.Findings {
		if !known[f.Source.Key()] {
			known[f.Source.Key()] = true
			sources = append(sources, f.Source)
		}
	}
	sortSources(sources)

	rank := make(map[string]int, len(sources))
	for i, src := range sources {
		rank[src.Key()] = i
	}
	findings := make([]model.ErrorFinding, len(s.Findings))
	copy(findings, s.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		return rank[findings[i].Source.Key()] < rank[findings[j].Source.Key()]
	})
	if s.SevereFirst {
		level := s.Severity
		if level == nil {
			level = func(f model.ErrorFinding) model.ImpactLevel { return f.BaseSeverity }
		}
		sort.SliceStable(findings, func(i, j int) bool {
			return level(findings[i]) >= model.ImpactHigh && level(findings[j]) < model.ImpactHigh
		})
	}

	truncated := uniqueSources(s.Truncated)
	sortSources(truncated)
	errs := make([]model.SourceError, len(s.Errors))
	copy(errs, s.Errors)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Source.Less(errs[j].Source) })

	assessment := s.Assessment
	if assessment.Rationale == nil {
		assessment.Rationale = []string{}
	}
	if assessment.AffectedServices == nil {
		assessment.AffectedServices = []string{}
	}

	pkg := &model.EvidencePackage{
		RunID:            s.RunID,
		Mode:             s.Mode,
		Description:      s.Description,
		Hypothesis:       s.Hypothesis,
		Findings:         findings,
		Assessment:       assessment,
		SourcesScanned:   sources,
		ElapsedMS:        s.Finished.Sub(s.Started).Milliseconds(),
		TruncatedSources: truncated,
		Partial:          s.Partial,
		Errors:           errs,
		Resources:        s.Resources,
		Containers:       s.Containers,
		CatalogVersion:   s.CatalogVersion,
		GeneratedAt:      s.Finished,
	}
	if len(errs) == 0 {
		pkg.Errors = nil
	}
	pkg.EstimatedTokens = EstimateTokens(pkg)
	return pkg
}

// EstimateTokens approximates the model tokens the package's free text
// will cost the summarization consumer.
func EstimateTokens(p *model.EvidencePackage) int {
	lines := []string{p.Description}
	for _, f := range p.Findings {
		lines = append(lines, f.MatchedEvidence...)
	}
	lines = append(lines, p.Assessment.Rationale...)
	return compactor.EstimateTokensLines(lines)
}

func uniqueSources(in []model.LogSource) []model.LogSource {
	out := make([]model.LogSource, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	return out
}

func sortSources(s []model.LogSource) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Less(s[j]) })
}
