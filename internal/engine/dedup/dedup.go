// Package dedup groups findings by category across sources.
package dedup

import (
	"github.com/crimson-sun/rca/internal/model"
)

// Index counts, per category, the distinct sources that reported it.
// Categories keep first-occurrence order.
type Index struct {
	order  []model.ErrorCategory
	groups map[model.ErrorCategory]*group
}

type group struct {
	sources map[string]bool
	matches int
}

// Build indexes findings.
func Build(findings []model.ErrorFinding) *Index {
	ix := &Index{groups: make(map[model.ErrorCategory]*group)}
	for _, f := range findings {
		g, ok := ix.groups[f.Category]
		if !ok {
			g = &group{sources: make(map[string]bool)}
			ix.groups[f.Category] = g
			ix.order = append(ix.order, f.Category)
		}
		g.sources[f.Source.Key()] = true
		g.matches += f.MatchCount
	}
	return ix
}

// Categories returns the indexed categories in first-occurrence order.
func (ix *Index) Categories() []model.ErrorCategory {
	return ix.order
}

// Sources returns how many distinct sources reported category.
func (ix *Index) Sources(category model.ErrorCategory) int {
	if g, ok := ix.groups[category]; ok {
		return len(g.sources)
	}
	return 0
}

// Matches returns the total match count for category across sources.
func (ix *Index) Matches(category model.ErrorCategory) int {
	if g, ok := ix.groups[category]; ok {
		return g.matches
	}
	return 0
}
