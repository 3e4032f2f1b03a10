// Package containerlogs exposes the recent output of each container as a
// container_log source.
package containerlogs

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/crimson-sun/rca/internal/collector/container"
	"github.com/crimson-sun/rca/internal/connector"
	"github.com/crimson-sun/rca/internal/model"
)

// Name is the provider name.
const Name = "container"

func init() {
	connector.Register(Name, func() connector.Connector {
		return New(container.NewMonitor())
	})
}

// Lister is the part of the container collaborator this provider needs.
type Lister interface {
	ListContainers(ctx context.Context) ([]model.ContainerSignal, error)
	Logs(ctx context.Context, c model.ContainerSignal, lines int) ([]byte, error)
}

// Connector implements connector.Connector over a container Lister.
type Connector struct {
	lister Lister
	now    func() time.Time
}

// New creates a Connector.
func New(l Lister) *Connector {
	return &Connector{lister: l, now: time.Now}
}

// SourcePath names a container source as runtime/name.
func SourcePath(c model.ContainerSignal) string {
	return c.Runtime + "/" + c.Name
}

// Streams returns one stream per running or unhealthy container. Stopped
// containers that exited cleanly are skipped. Config extras: "lines"
// (default 100).
func (c *Connector) Streams(ctx context.Context, cfg connector.Config, window model.Window) ([]connector.Stream, error) {
	containers, err := c.lister.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := strconv.Atoi(cfg.Get("lines", strconv.Itoa(container.DefaultLogLines)))
	if err != nil || lines <= 0 {
		lines = container.DefaultLogLines
	}

	now := c.now()
	var streams []connector.Stream
	for _, ct := range containers {
		if !ct.Running() && ct.Healthy {
			continue
		}
		ct := ct
		streams = append(streams, connector.Stream{
			Source: model.LogSource{
				Path:         SourcePath(ct),
				Kind:         model.KindContainerLog,
				DiscoveredAt: now,
				LastModified: window.Clamp(now),
			},
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				out, err := c.lister.Logs(ctx, ct, lines)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(out)), nil
			},
		})
	}
	return streams, nil
}
