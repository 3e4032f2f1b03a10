// Package scanner discovers log sources under a time window and processes
// them on a bounded worker pool.
//
// A single unreadable source never aborts a scan: it is recorded in the
// result's Errors and the remaining sources continue. When ctx ends before
// all sources finish, in-flight workers are abandoned and the result is
// marked Partial.
package scanner

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/rca/internal/connector"
	"github.com/crimson-sun/rca/internal/engine"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/progress"
)

// DefaultMaxDepth bounds how many directory levels below a root are walked.
const DefaultMaxDepth = 4

// Processor handles one source. *engine.Engine implements it.
type Processor interface {
	Process(ctx context.Context, in engine.Input) engine.Result
}

type binding struct {
	conn connector.Connector
	cfg  connector.Config
}

// Scanner is safe for concurrent use; each Scan call is independent.
type Scanner struct {
	proc       Processor
	maxDepth   int
	match      func(name string) bool
	connectors []binding
	progress   progress.Emitter
	now        func() time.Time
	log        *zap.SugaredLogger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxDepth sets the walk depth bound.
func WithMaxDepth(n int) Option {
	return func(s *Scanner) {
		if n >= 0 {
			s.maxDepth = n
		}
	}
}

// WithNameFilter replaces LooksLikeLog for files found by walking.
func WithNameFilter(f func(name string) bool) Option {
	return func(s *Scanner) { s.match = f }
}

// WithConnector adds a stream provider.
func WithConnector(c connector.Connector, cfg connector.Config) Option {
	return func(s *Scanner) { s.connectors = append(s.connectors, binding{conn: c, cfg: cfg}) }
}

// WithProgress sets the progress side channel.
func WithProgress(e progress.Emitter) Option {
	return func(s *Scanner) { s.progress = e }
}

// WithClock sets the time source for discovery timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a Scanner.
func New(p Processor, opts ...Option) *Scanner {
	s := &Scanner{
		proc:     p,
		maxDepth: DefaultMaxDepth,
		match:    LooksLikeLog,
		progress: progress.Nop{},
		now:      time.Now,
		log:      logging.Named("scanner"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result is the outcome of one scan.
type Result struct {
	// Discovered is every source found, in presentation order.
	Discovered []model.LogSource
	// Processed holds the readable sources that completed, in presentation order.
	Processed []engine.Result
	// Errors lists sources that could not be read.
	Errors []model.SourceError
	// Partial is set when ctx ended before every source completed.
	Partial bool
}

// Findings flattens findings in presentation order.
func (r *Result) Findings() []model.ErrorFinding {
	var out []model.ErrorFinding
	for _, p := range r.Processed {
		out = append(out, p.Findings...)
	}
	return out
}

// Sources returns the sources that were read, in presentation order.
func (r *Result) Sources() []model.LogSource {
	out := make([]model.LogSource, 0, len(r.Processed))
	for _, p := range r.Processed {
		out = append(out, p.Source)
	}
	return out
}

// Scan discovers sources and processes them with at most concurrency
// workers (runtime.NumCPU when concurrency < 1).
func (s *Scanner) Scan(ctx context.Context, roots []string, window model.Window, concurrency int) (*Result, error) {
	inputs, err := s.Discover(ctx, roots, window)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Partial: true}, nil
		}
		return nil, err
	}
	res := s.Run(ctx, inputs, concurrency)
	return res, nil
}

// Run processes already discovered inputs.
func (s *Scanner) Run(ctx context.Context, inputs []engine.Input, concurrency int) *Result {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	start := time.Now()
	s.progress.EmitStage("scan", "processing sources")
	s.log.Infow("scan started", logging.FieldCount, len(inputs), "workers", concurrency)

	col := newCollector(len(inputs), s.progress)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(concurrency)
		for _, in := range inputs {
			in := in
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				// Deadline is checked once per source, never per line.
				if ctx.Err() != nil {
					return nil
				}
				r := s.proc.Process(ctx, in)
				if r.Err != nil && ctx.Err() != nil {
					return nil
				}
				col.add(r)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	results := col.close()

	out := &Result{Discovered: make([]model.LogSource, 0, len(inputs))}
	for _, in := range inputs {
		out.Discovered = append(out.Discovered, in.Source)
	}
	for _, r := range results {
		if r.Err != nil {
			out.Errors = append(out.Errors, model.SourceError{Source: r.Source, Reason: r.Err.Error()})
			s.progress.EmitError("scan", r.Err)
			continue
		}
		out.Processed = append(out.Processed, r)
	}
	sort.SliceStable(out.Processed, func(i, j int) bool { return out.Processed[i].Source.Less(out.Processed[j].Source) })
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Source.Less(out.Errors[j].Source) })
	out.Partial = len(results) < len(inputs)

	s.log.Infow("scan finished",
		"discovered", len(inputs),
		"processed", len(out.Processed),
		"unreadable", len(out.Errors),
		"partial", out.Partial,
		logging.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return out
}

// collector gathers worker results. After close, late results are dropped.
type collector struct {
	mu       sync.Mutex
	closed   bool
	results  []engine.Result
	total    int
	progress progress.Emitter
}

func newCollector(total int, p progress.Emitter) *collector {
	return &collector{results: make([]engine.Result, 0, total), total: total, progress: p}
}

func (c *collector) add(r engine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.results = append(c.results, r)
	c.progress.EmitProgress(len(c.results), c.total)
}

func (c *collector) close() []engine.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	out := make([]engine.Result, len(c.results))
	copy(out, c.results)
	return out
}
