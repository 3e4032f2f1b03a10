package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
)

const (
	defaultBufferSize   = 16
	defaultDrainTimeout = 30 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 16.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the package) when
// the buffer is full, instead of blocking. Use for outputs where lossiness is
// acceptable (e.g., a best-effort webhook).
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for queued packages.
// Default: 30s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async decouples package delivery from the run that produced it via a
// buffered channel. A background goroutine drains it to the wrapped
// output. Errors from the inner output are passed to errFunc rather than
// propagated to the caller.
type Async struct {
	inner        output.Output
	ch           chan *model.EvidencePackage
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	dropOnFull   bool
	drainTimeout time.Duration
	closeOnce    sync.Once
	log          *zap.SugaredLogger
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		log:          logging.Named("output"),
	}
	a.errFunc = func(err error) { a.log.Warnw("async output write error", logging.FieldError, err) }
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan *model.EvidencePackage, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the package into the channel. By default, blocks if the
// channel is full (backpressure). With WithDropOnFull, returns nil
// immediately and the package is lost.
func (a *Async) Write(_ context.Context, pkg *model.EvidencePackage) error {
	if a.dropOnFull {
		select {
		case a.ch <- pkg:
		default:
			a.log.Warnw("async output buffer full, dropping package",
				logging.FieldRunID, pkg.RunID, logging.FieldLevel, pkg.Assessment.Level)
		}
		return nil
	}
	a.ch <- pkg
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			a.log.Warnw("async output drain timed out", "timeout", a.drainTimeout)
		}
		err = a.inner.Close()
	})
	return err
}

// drain reads packages from the channel and writes them to the inner output.
func (a *Async) drain() {
	defer close(a.done)
	for pkg := range a.ch {
		if err := a.inner.Write(context.Background(), pkg); err != nil {
			a.errFunc(err)
		}
	}
}
