// Package journal reads error-priority systemd journal entries for the scan
// window through journalctl.
package journal

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/crimson-sun/rca/internal/connector"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

const (
	// Name is the provider name.
	Name = "journal"

	journalctl      = "journalctl"
	defaultPriority = "err"
	timeFormat      = "2006-01-02 15:04:05"
)

func init() {
	connector.Register(Name, func() connector.Connector {
		return New()
	})
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Connector implements connector.Connector for the local journal.
type Connector struct {
	run      Runner
	lookPath func(string) (string, error)
	now      func() time.Time
}

// New creates a journal Connector.
func New() *Connector {
	return &Connector{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		lookPath: exec.LookPath,
		now:      time.Now,
	}
}

// Streams returns a single stream covering the window, or none when
// journalctl is not installed. Config extras: "priority" (default err).
func (c *Connector) Streams(_ context.Context, cfg connector.Config, window model.Window) ([]connector.Stream, error) {
	if _, err := c.lookPath(journalctl); err != nil {
		return nil, nil
	}
	args := Args(window, cfg.Get("priority", defaultPriority))
	now := c.now()
	src := model.LogSource{
		Path:         journalctl,
		Kind:         model.KindStream,
		DiscoveredAt: now,
		LastModified: window.Clamp(now),
	}
	open := func(ctx context.Context) (io.ReadCloser, error) {
		out, err := c.run(ctx, journalctl, args...)
		if err != nil {
			return nil, errors.Wrap(err, "journalctl")
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	}
	return []connector.Stream{{Source: src, Open: open}}, nil
}

// Args builds the journalctl arguments for a window and priority.
func Args(window model.Window, priority string) []string {
	return []string{
		"--since", window.Start.Local().Format(timeFormat),
		"--until", window.End.Local().Format(timeFormat),
		"--priority", priority,
		"--no-pager",
		"--output", "short-iso",
	}
}
