package rca

import (
	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/config"
	"github.com/crimson-sun/rca/internal/engine/catalog"
	"github.com/crimson-sun/rca/internal/orchestrator"
	"github.com/crimson-sun/rca/internal/progress"
)

type options struct {
	cfg        *config.Config
	catalog    *catalog.Catalog
	resources  orchestrator.ResourceSampler
	containers orchestrator.ContainerLister
	progress   progress.Emitter
	logger     *zap.SugaredLogger
	hostless   bool
}

// Option configures an RCA instance.
type Option func(*options)

// WithConfig sets the configuration. Default: config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithCatalog replaces the rule table. Takes precedence over catalog.path.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithResourceSampler replaces the host resource sampler.
func WithResourceSampler(s orchestrator.ResourceSampler) Option {
	return func(o *options) { o.resources = s }
}

// WithContainerLister replaces the container runtime client.
func WithContainerLister(l orchestrator.ContainerLister) Option {
	return func(o *options) { o.containers = l }
}

// WithProgress sets the progress side channel. Default: none.
func WithProgress(e progress.Emitter) Option {
	return func(o *options) { o.progress = e }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithoutHostSignals disables the default resource sampler, container
// client, journal and container log streams. Collaborators passed
// explicitly are still used. Runs then depend only on the files they read.
func WithoutHostSignals() Option {
	return func(o *options) { o.hostless = true }
}
