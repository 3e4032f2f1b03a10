// Package catalog holds the versioned table of classification rules.
//
// Rules are data: adding a category or pattern means editing YAML, not code.
// A Catalog is immutable once built and safe for concurrent use.
package catalog

import (
	_ "embed"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

//go:embed default.yaml
var defaultRules []byte

// RuleSpec is the serialized form of a rule.
type RuleSpec struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Severity   string   `yaml:"severity"`
	Confidence float64  `yaml:"confidence"`
	Pattern    string   `yaml:"pattern"`
	AppliesTo  []string `yaml:"applies_to,omitempty"`
}

type file struct {
	Version string     `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

// Rule is a compiled classification rule.
type Rule struct {
	Name         string
	Category     model.ErrorCategory
	BaseSeverity model.ImpactLevel
	Confidence   float64
	Pattern      *regexp.Regexp
	AppliesTo    map[string]bool
}

// Applies reports whether the rule is evaluated for the given document type.
// Rules without applies_to, and documents of unknown type, always apply.
func (r *Rule) Applies(docType string) bool {
	if len(r.AppliesTo) == 0 || docType == "" {
		return true
	}
	return r.AppliesTo[docType]
}

// Match is one rule hit on one line.
type Match struct {
	Category     model.ErrorCategory
	Excerpt      string
	Line         int
	BaseSeverity model.ImpactLevel
	Confidence   float64
	Rule         string
}

// Catalog is a read-only rule table.
type Catalog struct {
	version string
	rules   []*Rule
}

// New compiles and validates rule specs. An empty rule set is valid.
func New(version string, specs []RuleSpec) (*Catalog, error) {
	c := &Catalog{version: version, rules: make([]*Rule, 0, len(specs))}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, errors.NewInvalidConfigurationf("catalog rule %d: missing name", i)
		}
		if seen[s.Name] {
			return nil, errors.NewInvalidConfigurationf("catalog rule %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Category == "" {
			return nil, errors.NewInvalidConfigurationf("catalog rule %q: missing category", s.Name)
		}
		sev, err := model.ParseImpactLevel(s.Severity)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "catalog rule %q", s.Name), errors.ErrInvalidConfiguration)
		}
		if s.Confidence <= 0 || s.Confidence >= 1 {
			return nil, errors.NewInvalidConfigurationf("catalog rule %q: confidence %v outside (0,1)", s.Name, s.Confidence)
		}
		re, err := regexp.Compile(s.Pattern)
		if err != nil || s.Pattern == "" {
			if err == nil {
				err = errors.New("empty pattern")
			}
			return nil, errors.Mark(errors.Wrapf(err, "catalog rule %q", s.Name), errors.ErrInvalidConfiguration)
		}
		r := &Rule{
			Name:         s.Name,
			Category:     model.ErrorCategory(strings.ToLower(s.Category)),
			BaseSeverity: sev,
			Confidence:   s.Confidence,
			Pattern:      re,
		}
		if len(s.AppliesTo) > 0 {
			r.AppliesTo = make(map[string]bool, len(s.AppliesTo))
			for _, a := range s.AppliesTo {
				r.AppliesTo[a] = true
			}
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Load reads a YAML rule file from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode catalog"), errors.ErrInvalidConfiguration)
	}
	return New(f.Version, f.Rules)
}

// LoadFile reads a YAML rule file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open catalog %s", path), errors.ErrInvalidConfiguration)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in catalog. It panics if the embedded rules are
// invalid, which the package tests rule out.
func Default() *Catalog {
	c, err := Load(strings.NewReader(string(defaultRules)))
	if err != nil {
		panic(err)
	}
	return c
}

// Empty returns a catalog with no rules.
func Empty() *Catalog {
	return &Catalog{version: "empty"}
}

func (c *Catalog) Version() string { return c.version }

// Rules returns the compiled rules in evaluation order.
func (c *Catalog) Rules() []*Rule {
	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Categories returns the distinct categories in first-declared order.
func (c *Catalog) Categories() []model.ErrorCategory {
	var out []model.ErrorCategory
	seen := make(map[model.ErrorCategory]bool)
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Rule returns the rules for one category.
func (c *Catalog) Rule(category model.ErrorCategory) []*Rule {
	var out []*Rule
	for _, r := range c.rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Match evaluates every rule against every line of text and returns all
// matches ordered by line, then by rule declaration order.
func (c *Catalog) Match(text string) []Match {
	return c.MatchLines(strings.Split(text, "\n"), "")
}

// MatchLines is Match over pre-split lines, restricted to rules that apply
// to docType.
func (c *Catalog) MatchLines(lines []string, docType string) []Match {
	if len(c.rules) == 0 {
		return nil
	}
	var out []Match
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, r := range c.rules {
			if !r.Applies(docType) || !r.Pattern.MatchString(line) {
				continue
			}
			out = append(out, Match{
				Category:     r.Category,
				Excerpt:      strings.TrimSpace(line),
				Line:         i + 1,
				BaseSeverity: r.BaseSeverity,
				Confidence:   r.Confidence,
				Rule:         r.Name,
			})
		}
	}
	return out
}
