// Package structured adapts layout-aware document extractors. Every
// extractor is optional: callers check Available and must tolerate any
// Extract failure.
package structured

import (
	"context"
	"fmt"
	"strings"

	"github.com/crimson-sun/rca/internal/errors"
)

// Result is the text and layout hints extracted from one document.
type Result struct {
	Text  string
	Hints map[string]string
}

// Extractor converts a structured document to text.
type Extractor interface {
	Name() string
	// Available reports whether the extractor can be used right now.
	Available(ctx context.Context) bool
	// Supports reports whether format (a lowercase extension such as "pdf")
	// is handled.
	Supports(format string) bool
	Extract(ctx context.Context, filename, format string, content []byte) (*Result, error)
}

// ErrUnsupported is returned when no extractor handles a format.
var ErrUnsupported = errors.New("unsupported document format")

// Chain tries extractors in order. It is itself an Extractor.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a Chain over extractors, skipping nils.
func NewChain(extractors ...Extractor) *Chain {
	c := &Chain{}
	for _, e := range extractors {
		if e != nil {
			c.extractors = append(c.extractors, e)
		}
	}
	return c
}

// Register appends an extractor.
func (c *Chain) Register(e Extractor) {
	c.extractors = append(c.extractors, e)
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Available is true when any member is available.
func (c *Chain) Available(ctx context.Context) bool {
	for _, e := range c.extractors {
		if e.Available(ctx) {
			return true
		}
	}
	return false
}

func (c *Chain) Supports(format string) bool {
	for _, e := range c.extractors {
		if e.Supports(format) {
			return true
		}
	}
	return false
}

// Extract returns the first successful member result. All member failures
// are joined into the returned error.
func (c *Chain) Extract(ctx context.Context, filename, format string, content []byte) (*Result, error) {
	var errs []error
	for _, e := range c.extractors {
		if !e.Supports(format) {
			continue
		}
		if !e.Available(ctx) {
			errs = append(errs, fmt.Errorf("%s: unavailable", e.Name()))
			continue
		}
		res, err := e.Extract(ctx, filename, format, content)
		if err == nil {
			if res.Hints == nil {
				res.Hints = map[string]string{}
			}
			res.Hints["extractor"] = e.Name()
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.Wrapf(ErrUnsupported, "format %q", format)
	}
	return nil, errors.Join(errs...)
}
