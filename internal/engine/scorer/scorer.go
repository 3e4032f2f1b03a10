// Package scorer combines findings, resource signals and container signals
// into one impact assessment. Scoring is pessimistic: the headline level is
// the maximum over all candidate levels.
package scorer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/crimson-sun/rca/internal/engine/dedup"
	"github.com/crimson-sun/rca/internal/model"
)

// Config holds the escalation thresholds.
type Config struct {
	ConfidenceThreshold float64       // raise when confidence >= this (default 0.8)
	MinSources          int           // ... and this many distinct sources agree (default 2)
	CPUHighWater        float64       // percent (default 90)
	MemHighWater        float64       // percent (default 90)
	CoincidenceWindow   time.Duration // max distance between sample and source activity (default 15m)
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		MinSources:          2,
		CPUHighWater:        90,
		MemHighWater:        90,
		CoincidenceWindow:   15 * time.Minute,
	}
}

// Scorer is a pure combination function over its inputs.
type Scorer struct {
	cfg Config
}

// New creates a Scorer. Zero fields fall back to defaults.
func New(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.MinSources <= 0 {
		cfg.MinSources = def.MinSources
	}
	if cfg.CPUHighWater <= 0 {
		cfg.CPUHighWater = def.CPUHighWater
	}
	if cfg.MemHighWater <= 0 {
		cfg.MemHighWater = def.MemHighWater
	}
	if cfg.CoincidenceWindow <= 0 {
		cfg.CoincidenceWindow = def.CoincidenceWindow
	}
	return &Scorer{cfg: cfg}
}

// Level computes the adjusted level of a single finding given the corroboration
// index and resource saturation state.
func (s *Scorer) Level(f model.ErrorFinding, ix *dedup.Index, res *model.ResourceSignals) model.ImpactLevel {
	lvl := f.BaseSeverity
	if s.corroborated(f, ix) {
		lvl = lvl.Raise(1)
	}
	if s.coincident(f, res) {
		lvl = lvl.Raise(1)
	}
	return lvl
}

// Score produces the assessment. Zero findings score Info.
func (s *Scorer) Score(findings []model.ErrorFinding, res *model.ResourceSignals, containers []model.ContainerSignal) model.ImpactAssessment {
	a := model.ImpactAssessment{
		Level:            model.ImpactInfo,
		Rationale:        []string{},
		AffectedServices: []string{},
	}
	ix := dedup.Build(findings)

	// Highest adjusted level per category, in first-occurrence order.
	type best struct {
		finding model.ErrorFinding
		level   model.ImpactLevel
		raised  []string
	}
	top := make(map[model.ErrorCategory]*best)
	for _, f := range findings {
		lvl := s.Level(f, ix, res)
		if lvl > a.Level {
			a.Level = lvl
		}
		b, ok := top[f.Category]
		if ok && lvl <= b.level {
			continue
		}
		b = &best{finding: f, level: lvl}
		if s.corroborated(f, ix) {
			b.raised = append(b.raised, fmt.Sprintf("confidence %.2f corroborated by %d sources", f.RawConfidence, ix.Sources(f.Category)))
		}
		if s.coincident(f, res) {
			b.raised = append(b.raised, "coincides with resource saturation")
		}
		top[f.Category] = b
	}

	for _, cat := range ix.Categories() {
		b := top[cat]
		line := fmt.Sprintf("%s: %s in %s (%d matches, confidence %.2f)",
			cat, b.finding.BaseSeverity, b.finding.Source.Path, ix.Matches(cat), b.finding.RawConfidence)
		if len(b.raised) > 0 {
			line += fmt.Sprintf("; raised to %s: %s", b.level, strings.Join(b.raised, ", "))
		}
		a.Rationale = append(a.Rationale, line)
	}
	if len(findings) == 0 {
		a.Rationale = append(a.Rationale, "no catalog patterns matched")
	}
	if sat := s.saturation(res); sat != "" {
		a.Rationale = append(a.Rationale, "resource saturation: "+sat)
	}

	services := make(map[string]bool)
	for _, f := range findings {
		for _, svc := range ServicesFromFinding(f) {
			services[svc] = true
		}
	}
	for _, c := range containers {
		if c.Running() && !c.Healthy {
			services[c.Name] = true
			a.Rationale = append(a.Rationale, fmt.Sprintf("container %s (%s) unhealthy: %s", c.Name, c.Runtime, c.Status))
		}
	}
	for svc := range services {
		a.AffectedServices = append(a.AffectedServices, svc)
	}
	sort.Strings(a.AffectedServices)
	return a
}

func (s *Scorer) corroborated(f model.ErrorFinding, ix *dedup.Index) bool {
	return f.RawConfidence >= s.cfg.ConfidenceThreshold && ix.Sources(f.Category) >= s.cfg.MinSources
}

func (s *Scorer) saturated(res *model.ResourceSignals) bool {
	return res != nil && (res.CPUPct >= s.cfg.CPUHighWater || res.MemPct >= s.cfg.MemHighWater)
}

func (s *Scorer) coincident(f model.ErrorFinding, res *model.ResourceSignals) bool {
	if !s.saturated(res) {
		return false
	}
	if res.SampledAt.IsZero() || f.Source.LastModified.IsZero() {
		return true
	}
	d := res.SampledAt.Sub(f.Source.LastModified)
	if d < 0 {
		d = -d
	}
	return d <= s.cfg.CoincidenceWindow
}

func (s *Scorer) saturation(res *model.ResourceSignals) string {
	if !s.saturated(res) {
		return ""
	}
	var parts []string
	if res.CPUPct >= s.cfg.CPUHighWater {
		parts = append(parts, fmt.Sprintf("cpu %.1f%% >= %.0f%%", res.CPUPct, s.cfg.CPUHighWater))
	}
	if res.MemPct >= s.cfg.MemHighWater {
		parts = append(parts, fmt.Sprintf("memory %.1f%% >= %.0f%%", res.MemPct, s.cfg.MemHighWater))
	}
	return strings.Join(parts, ", ")
}

var unitRe = regexp.MustCompile(`\b([A-Za-z0-9][\w@.:-]*)\.(service|socket|mount|timer|path|scope)\b`)

// ignoredUnits are infrastructure units that appear in nearly every log and
// name no particular workload.
var ignoredUnits = map[string]bool{
	"systemd-journald.service": true,
	"init.scope":               true,
}

// ServicesFromFinding extracts service identifiers from a finding: systemd
// unit names in its evidence and the container behind a container log.
func ServicesFromFinding(f model.ErrorFinding) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] && !ignoredUnits[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if f.Source.Kind == model.KindContainerLog {
		_, name, _ := strings.Cut(f.Source.Path, "/")
		add(name)
	}
	for _, ev := range f.MatchedEvidence {
		for _, m := range unitRe.FindAllString(ev, -1) {
			add(m)
		}
	}
	return out
}
