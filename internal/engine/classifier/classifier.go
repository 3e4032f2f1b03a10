// Package classifier turns catalog matches over a parsed document into
// findings: one per category per document.
package classifier

import (
	"math"
	"strings"

	"github.com/crimson-sun/rca/internal/engine/catalog"
	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
)

const (
	// DefaultMaxExcerpts bounds matched_evidence per finding.
	DefaultMaxExcerpts = 5
	// MaxConfidence keeps raw confidence strictly below 1.
	MaxConfidence = 0.999
)

// Classifier applies a catalog to documents. It performs no I/O and holds no
// mutable state, so one instance is shared by all scanner workers.
type Classifier struct {
	catalog     *catalog.Catalog
	compactor   *compactor.Compactor
	maxExcerpts int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMaxExcerpts sets the evidence cap per finding.
func WithMaxExcerpts(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxExcerpts = n
		}
	}
}

// WithCompactor sets how evidence lines are shortened.
func WithCompactor(cmp *compactor.Compactor) Option {
	return func(c *Classifier) { c.compactor = cmp }
}

// New creates a Classifier over cat. A nil catalog behaves as empty.
func New(cat *catalog.Catalog, opts ...Option) *Classifier {
	if cat == nil {
		cat = catalog.Empty()
	}
	c := &Classifier{
		catalog:     cat,
		compactor:   compactor.New(compactor.Standard),
		maxExcerpts: DefaultMaxExcerpts,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Catalog returns the rule table in use.
func (c *Classifier) Catalog() *catalog.Catalog { return c.catalog }

// group accumulates matches of one category.
type group struct {
	finding model.ErrorFinding
	maxP    float64
	seen    map[string]bool
}

// Classify returns findings for doc in order of each category's first match.
// A document with no matches yields nil.
func (c *Classifier) Classify(doc model.ParsedDocument) []model.ErrorFinding {
	matches := c.catalog.MatchLines(doc.Lines, doc.Meta[model.MetaDocumentType])
	if len(matches) == 0 {
		return nil
	}

	var order []model.ErrorCategory
	groups := make(map[model.ErrorCategory]*group)

	for _, m := range matches {
		g, ok := groups[m.Category]
		if !ok {
			g = &group{
				finding: model.ErrorFinding{
					Source:       doc.Source,
					Category:     m.Category,
					BaseSeverity: m.BaseSeverity,
				},
				seen: make(map[string]bool),
			}
			groups[m.Category] = g
			order = append(order, m.Category)
		}
		g.finding.MatchCount++
		if m.BaseSeverity > g.finding.BaseSeverity {
			g.finding.BaseSeverity = m.BaseSeverity
		}
		if m.Confidence > g.maxP {
			g.maxP = m.Confidence
		}
		ex := c.compactor.Excerpt(m.Excerpt)
		if len(g.finding.MatchedEvidence) < c.maxExcerpts && !g.seen[ex] {
			g.seen[ex] = true
			g.finding.MatchedEvidence = append(g.finding.MatchedEvidence, ex)
		}
	}

	findings := make([]model.ErrorFinding, 0, len(order))
	for _, cat := range order {
		g := groups[cat]
		g.finding.RawConfidence = Confidence(g.maxP, g.finding.MatchCount)
		findings = append(findings, g.finding)
	}
	return findings
}

// ClassifyText classifies free text attributed to src.
func (c *Classifier) ClassifyText(src model.LogSource, text string) []model.ErrorFinding {
	return c.Classify(model.ParsedDocument{
		Source: src,
		Lines:  strings.Split(text, "\n"),
	})
}

// Confidence is the saturating corroboration function 1-(1-p)^n, capped
// below 1. It is non-decreasing in both p and n.
func Confidence(p float64, n int) float64 {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return MaxConfidence
	}
	return math.Min(1-math.Pow(1-p, float64(n)), MaxConfidence)
}

// Hypothesis picks the leading category among findings: highest severity,
// then highest confidence, then earliest. Returns "" for no findings.
func Hypothesis(findings []model.ErrorFinding) model.ErrorCategory {
	var best *model.ErrorFinding
	for i := range findings {
		f := &findings[i]
		if best == nil ||
			f.BaseSeverity > best.BaseSeverity ||
			(f.BaseSeverity == best.BaseSeverity && f.RawConfidence > best.RawConfidence) {
			best = f
		}
	}
	if best == nil {
		return ""
	}
	return best.Category
}
