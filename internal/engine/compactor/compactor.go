// Package compactor trims matched log lines into bounded evidence excerpts.
package compactor

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Verbosity controls how much of each excerpt is retained.
type Verbosity int

const (
	Minimal  Verbosity = iota // short excerpts, correlation noise stripped
	Standard                  // moderate excerpts, correlation noise stripped
	Full                      // lines kept verbatim
)

// ParseVerbosity maps a name to a Verbosity. Unknown names map to Standard.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal
	case "full":
		return Full
	default:
		return Standard
	}
}

// Fields removed from JSON-formatted lines below Full verbosity. They carry
// per-request identity, not diagnostic content.
var defaultStripFields = []string{
	"trace_id", "span_id", "request_id", "correlation_id",
	"dd.trace_id", "dd.span_id", "x_request_id", "traceparent",
}

// Compactor shortens excerpts according to its verbosity.
type Compactor struct {
	Verbosity   Verbosity
	maxRunes    int
	stripFields []string
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithMaxRunes overrides the per-excerpt rune limit. Zero disables the limit.
func WithMaxRunes(n int) Option {
	return func(c *Compactor) { c.maxRunes = n }
}

// WithStripFields replaces the JSON field strip list.
func WithStripFields(fields []string) Option {
	return func(c *Compactor) { c.stripFields = fields }
}

// New creates a Compactor with the given verbosity level.
func New(v Verbosity, opts ...Option) *Compactor {
	c := &Compactor{Verbosity: v, stripFields: defaultStripFields}
	switch v {
	case Minimal:
		c.maxRunes = 120
	case Standard:
		c.maxRunes = 240
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Excerpt compacts one evidence line.
func (c *Compactor) Excerpt(line string) string {
	line = strings.TrimSpace(line)
	if c.Verbosity == Full {
		return line
	}
	line = stripFields(line, c.stripFields)
	if c.maxRunes > 0 {
		line = truncate(line, c.maxRunes)
	}
	return line
}

// Summary returns the first line of s, cut at a word boundary near 120 runes.
func Summary(s string) string {
	return summarize(s)
}

// truncate cuts s to at most maxRunes runes and appends "..." when cut.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

func summarize(raw string) string {
	first, _, _ := strings.Cut(raw, "\n")
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) <= 120 {
		return first
	}
	runes := []rune(first)[:120]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// stripFields removes the named keys from a JSON object line. Non-JSON input
// and lines with none of the keys are returned unchanged.
func stripFields(line string, fields []string) string {
	if len(fields) == 0 || !strings.HasPrefix(line, "{") {
		return line
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return line
	}
	removed := false
	for _, f := range fields {
		if _, ok := m[f]; ok {
			delete(m, f)
			removed = true
		}
	}
	if !removed {
		return line
	}
	out, err := json.Marshal(m)
	if err != nil {
		return line
	}
	return string(out)
}
