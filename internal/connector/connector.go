// Package connector provides non-file log sources. Providers register by
// name in init and are looked up by the scanner from configuration.
package connector

import (
	"context"
	"io"

	"github.com/crimson-sun/rca/internal/model"
)

// Connector defines the interface all stream source providers must implement.
type Connector interface {
	// Streams lists the sources this provider can read for the window.
	// A provider whose backing tool is absent returns no streams and no error.
	Streams(ctx context.Context, cfg Config, window model.Window) ([]Stream, error)
}

// Stream is one discovered non-file source. Open is called by a scanner
// worker, so discovery itself stays cheap.
type Stream struct {
	Source model.LogSource
	Open   func(ctx context.Context) (io.ReadCloser, error)
}

// Config holds provider-specific settings.
type Config struct {
	Provider string
	Extra    map[string]string
}

// Get returns Extra[key], or def when unset.
func (c Config) Get(key, def string) string {
	if v, ok := c.Extra[key]; ok && v != "" {
		return v
	}
	return def
}
