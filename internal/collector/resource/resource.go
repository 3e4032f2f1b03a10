// Package resource takes one host CPU, memory and top-process snapshot per
// run through gopsutil.
package resource

import (
	"context"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
)

const (
	// DefaultTopProcesses is how many processes a snapshot keeps.
	DefaultTopProcesses = 10
	// DefaultInterval is the CPU measurement window.
	DefaultInterval = 500 * time.Millisecond
)

// Sampler is polled once per run, never streamed.
type Sampler struct {
	cpuPercent func(ctx context.Context, interval time.Duration) (float64, error)
	memPercent func(ctx context.Context) (float64, error)
	processes  func(ctx context.Context) ([]model.ProcessSample, error)
	interval   time.Duration
	top        int
	now        func() time.Time
	log        *zap.SugaredLogger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the CPU measurement window.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTopProcesses sets how many processes are kept, highest CPU first.
func WithTopProcesses(n int) Option {
	return func(s *Sampler) {
		if n >= 0 {
			s.top = n
		}
	}
}

// NewSampler creates a Sampler reading the local host.
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{
		cpuPercent: hostCPU,
		memPercent: hostMem,
		processes:  hostProcesses,
		interval:   DefaultInterval,
		top:        DefaultTopProcesses,
		now:        time.Now,
		log:        logging.Named("resource"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sample returns a snapshot. A process-list failure only empties
// PerProcess; the error is returned when neither CPU nor memory could be read.
func (s *Sampler) Sample(ctx context.Context) (*model.ResourceSignals, error) {
	sig := &model.ResourceSignals{SampledAt: s.now()}

	cpuPct, cpuErr := s.cpuPercent(ctx, s.interval)
	memPct, memErr := s.memPercent(ctx)
	if cpuErr != nil && memErr != nil {
		return nil, errors.WrapCollaborator(errors.Join(cpuErr, memErr), "resource sampler")
	}
	if cpuErr != nil {
		s.log.Debugw("cpu sample failed", logging.FieldError, cpuErr)
	}
	if memErr != nil {
		s.log.Debugw("memory sample failed", logging.FieldError, memErr)
	}
	sig.CPUPct = cpuPct
	sig.MemPct = memPct

	if s.top > 0 {
		procs, err := s.processes(ctx)
		if err != nil {
			s.log.Debugw("process list failed", logging.FieldError, err)
		}
		sig.PerProcess = topByCPU(procs, s.top)
	}
	return sig, nil
}

// topByCPU keeps the n busiest processes, ties broken by memory then PID.
func topByCPU(procs []model.ProcessSample, n int) []model.ProcessSample {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].CPUPct != procs[j].CPUPct {
			return procs[i].CPUPct > procs[j].CPUPct
		}
		if procs[i].MemPct != procs[j].MemPct {
			return procs[i].MemPct > procs[j].MemPct
		}
		return procs[i].PID < procs[j].PID
	})
	if len(procs) > n {
		procs = procs[:n]
	}
	return procs
}

func hostCPU(ctx context.Context, interval time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get cpu percent")
	}
	if len(pcts) == 0 {
		return 0, errors.New("no cpu percent reported")
	}
	return pcts[0], nil
}

func hostMem(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.UsedPercent, nil
}

// hostProcesses skips processes that exit or deny access mid-walk.
func hostProcesses(ctx context.Context) ([]model.ProcessSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}
	out := make([]model.ProcessSample, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		out = append(out, model.ProcessSample{
			PID:    p.Pid,
			Name:   name,
			CPUPct: cpuPct,
			MemPct: float64(memPct),
		})
	}
	return out, nil
}
