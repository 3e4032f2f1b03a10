// Package orchestrator runs one diagnosis as a state machine:
//
//	start -> {basic|scan|quick|triage} -> scored -> assembled -> done
//
// Each mode is a different path through the same engine, scanner and
// scorer. Triage is the only mode with a hard deadline; when it expires the
// run goes straight to assembled with whatever completed and the package is
// marked partial.
package orchestrator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/engine"
	"github.com/crimson-sun/rca/internal/engine/classifier"
	"github.com/crimson-sun/rca/internal/engine/dedup"
	"github.com/crimson-sun/rca/internal/engine/scorer"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/progress"
	"github.com/crimson-sun/rca/internal/report"
	"github.com/crimson-sun/rca/internal/scanner"
)

// DescriptionSource is the synthetic source findings from the error
// description are attributed to.
const DescriptionSource = "description"

// ResourceSampler is the resource-sampling collaborator.
type ResourceSampler interface {
	Sample(ctx context.Context) (*model.ResourceSignals, error)
}

// ContainerLister is the container collaborator.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]model.ContainerSignal, error)
}

// Deps are the components a run uses. Engine and Scorer are required.
// Scanner defaults to one over Engine; nil collaborators are skipped.
type Deps struct {
	Engine     *engine.Engine
	Scanner    *scanner.Scanner
	Scorer     *scorer.Scorer
	Resources  ResourceSampler
	Containers ContainerLister
	Progress   progress.Emitter
	Logger     *zap.SugaredLogger

	// OnTransition observes every state change.
	OnTransition func(from, to State)
	Clock        func() time.Time
	NewRunID     func() string
}

// Config holds run defaults.
type Config struct {
	Hours        int
	Roots        []string
	Concurrency  int
	TriageBudget time.Duration
	TriageScan   bool
}

// DefaultConfig returns the stock run defaults.
func DefaultConfig() Config {
	return Config{
		Hours:        24,
		Roots:        scanner.DefaultRoots,
		TriageBudget: 30 * time.Second,
	}
}

// Orchestrator is safe for concurrent use; each Run has its own state.
type Orchestrator struct {
	deps Deps
	cfg  Config
	log  *zap.SugaredLogger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Engine == nil {
		return nil, errors.NewInvalidConfigurationf("orchestrator: engine is required")
	}
	if deps.Scorer == nil {
		return nil, errors.NewInvalidConfigurationf("orchestrator: scorer is required")
	}
	if deps.Progress == nil {
		deps.Progress = progress.Nop{}
	}
	if deps.Scanner == nil {
		deps.Scanner = scanner.New(deps.Engine, scanner.WithProgress(deps.Progress))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = logging.Named("orchestrator")
	}
	def := DefaultConfig()
	if cfg.Hours <= 0 {
		cfg.Hours = def.Hours
	}
	if cfg.Roots == nil {
		cfg.Roots = def.Roots
	}
	if cfg.TriageBudget <= 0 {
		cfg.TriageBudget = def.TriageBudget
	}
	return &Orchestrator{deps: deps, cfg: cfg, log: deps.Logger}, nil
}

// run is the mutable state of one invocation.
type run struct {
	o      *Orchestrator
	req    Request
	m      *machine
	st     report.State
	window model.Window
	log    *zap.SugaredLogger
}

// Run executes req. The only errors are invalid configuration, detected
// before any stage runs, and Basic mode's single source being unreadable.
// A partial Triage package is a success.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.EvidencePackage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := o.deps.Clock()
	hours := req.Hours
	if hours == 0 {
		hours = o.cfg.Hours
	}
	r := &run{
		o:   o,
		req: req,
		st: report.State{
			RunID:          o.deps.NewRunID(),
			Mode:           req.Mode,
			Description:    req.Description,
			CatalogVersion: o.deps.Engine.Classifier().Catalog().Version(),
			Started:        start,
		},
		window: model.WindowEndingAt(start, hours),
	}
	r.log = o.log.With(logging.FieldRunID, r.st.RunID, logging.FieldMode, req.Mode)
	r.m = newMachine(func(from, to State) {
		r.log.Debugw("state transition", "from", from, logging.FieldState, to)
		o.deps.Progress.EmitStage(string(to), stageMessage(to, req))
		if o.deps.OnTransition != nil {
			o.deps.OnTransition(from, to)
		}
	})

	r.st.Hypothesis = r.hypothesis()

	var (
		err    error
		scored = true
	)
	switch req.Mode {
	case model.ModeBasic:
		err = r.basic(ctx)
	case model.ModeScan:
		err = r.scan(ctx)
	case model.ModeQuick:
		err = r.quick()
	case model.ModeTriage:
		scored, err = r.triage(ctx)
	}
	if err != nil {
		return nil, err
	}

	if scored {
		if err := r.m.to(StateScored); err != nil {
			return nil, err
		}
		r.score(ctx)
	} else {
		// Deadline expired: score what is in hand without gathering more.
		r.st.Assessment = o.deps.Scorer.Score(r.st.Findings, r.st.Resources, r.st.Containers)
		r.setSeverity()
	}
	if r.st.Hypothesis == "" {
		r.st.Hypothesis = classifier.Hypothesis(r.st.Findings)
	}

	if err := r.m.to(StateAssembled); err != nil {
		return nil, err
	}
	r.st.Finished = o.deps.Clock()
	pkg := report.Assemble(r.st)

	if err := r.m.to(StateDone); err != nil {
		return nil, err
	}
	o.deps.Progress.EmitComplete(map[string]any{
		"level":    pkg.Assessment.Level.String(),
		"findings": len(pkg.Findings),
		"sources":  len(pkg.SourcesScanned),
		"partial":  pkg.Partial,
	})
	r.log.Infow("run finished",
		logging.FieldLevel, pkg.Assessment.Level,
		logging.FieldCount, len(pkg.Findings),
		"sources", len(pkg.SourcesScanned),
		"partial", pkg.Partial,
		logging.FieldDurationMS, pkg.ElapsedMS,
	)
	return pkg, nil
}

func (r *run) descriptionSource() model.LogSource {
	now := r.o.deps.Clock()
	return model.LogSource{
		Path:         DescriptionSource,
		Kind:         model.KindStream,
		DiscoveredAt: now,
		SizeBytes:    int64(len(r.req.Description)),
		LastModified: now,
	}
}

// hypothesis classifies the description text alone.
func (r *run) hypothesis() model.ErrorCategory {
	cls := r.o.deps.Engine.Classifier()
	return classifier.Hypothesis(cls.ClassifyText(r.descriptionSource(), r.req.Description))
}

func (r *run) basic(ctx context.Context) error {
	if err := r.m.to(StateBasic); err != nil {
		return err
	}
	src := model.LogSource{Path: r.req.LogPath, Kind: model.KindFile, DiscoveredAt: r.o.deps.Clock()}
	if info, err := os.Stat(r.req.LogPath); err == nil {
		src.SizeBytes = info.Size()
		src.LastModified = info.ModTime()
	}
	res := r.o.deps.Engine.Process(ctx, engine.Input{Source: src})
	if res.Err != nil {
		return errors.Mark(errors.Wrapf(res.Err, "basic mode"), errors.ErrNoUsableInput)
	}
	r.addResult(res)
	return nil
}

func (r *run) scan(ctx context.Context) error {
	if err := r.m.to(StateScan); err != nil {
		return err
	}
	res, err := r.o.deps.Scanner.Scan(ctx, r.roots(), r.window, r.o.cfg.Concurrency)
	if err != nil {
		return err
	}
	r.addScan(res)
	return nil
}

// quick schedules no file I/O: the description is the only evidence.
func (r *run) quick() error {
	if err := r.m.to(StateQuick); err != nil {
		return err
	}
	src := r.descriptionSource()
	r.st.Sources = append(r.st.Sources, src)
	r.st.Findings = r.o.deps.Engine.Classifier().ClassifyText(src, r.req.Description)
	return nil
}

// triage gathers evidence under one shared deadline. Sampling and the scan
// run concurrently. On expiry the collaborators still running are
// abandoned; the scanner returns promptly with its completed sources. The
// returned bool is false when the deadline cut the run short.
func (r *run) triage(ctx context.Context) (bool, error) {
	if err := r.m.to(StateTriage); err != nil {
		return false, err
	}
	r.st.SevereFirst = true

	budget := r.req.Budget
	if budget == 0 {
		budget = r.o.cfg.TriageBudget
	}
	dctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var (
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
	)
	deliver := func(f func()) {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			f()
		}
	}

	if s := r.o.deps.Resources; s != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := s.Sample(dctx)
			if err != nil {
				r.collaboratorFailed("resources", err)
				return
			}
			deliver(func() { r.st.Resources = sig })
		}()
	}
	if l := r.o.deps.Containers; l != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs, err := l.ListContainers(dctx)
			if err != nil {
				r.collaboratorFailed("containers", err)
				return
			}
			deliver(func() { r.st.Containers = cs })
		}()
	}

	scanDone := make(chan *scanner.Result, 1)
	if inputs := r.triageInputs(dctx); len(inputs) > 0 || r.req.Scan || r.o.cfg.TriageScan {
		go func() {
			scanDone <- r.o.deps.Scanner.Run(dctx, inputs, r.o.cfg.Concurrency)
		}()
	} else {
		close(scanDone)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	expired := false
	select {
	case <-allDone:
	case <-dctx.Done():
		expired = true
	}
	mu.Lock()
	closed = true
	mu.Unlock()

	if res, ok := <-scanDone; ok && res != nil {
		r.addScan(res)
	}
	if dctx.Err() != nil && ctx.Err() == nil {
		expired = true
	}
	if expired {
		r.st.Partial = true
		r.log.Infow("triage deadline expired", "budget", budget)
	}
	if len(r.st.Sources) == 0 {
		src := r.descriptionSource()
		r.st.Sources = append(r.st.Sources, src)
		r.st.Findings = append(r.st.Findings, r.o.deps.Engine.Classifier().ClassifyText(src, r.req.Description)...)
	}
	return !expired, nil
}

// triageInputs lists the explicit file, if any, followed by discovered
// sources when scanning is enabled.
func (r *run) triageInputs(ctx context.Context) []engine.Input {
	var inputs []engine.Input
	seen := map[string]bool{}
	if r.req.LogPath != "" {
		src := model.LogSource{Path: r.req.LogPath, Kind: model.KindFile, DiscoveredAt: r.o.deps.Clock()}
		if info, err := os.Stat(r.req.LogPath); err == nil {
			src.SizeBytes = info.Size()
			src.LastModified = info.ModTime()
		}
		inputs = append(inputs, engine.Input{Source: src})
		seen[src.Path] = true
	}
	if !r.req.Scan && !r.o.cfg.TriageScan {
		return inputs
	}
	discovered, err := r.o.deps.Scanner.Discover(ctx, r.roots(), r.window)
	if err != nil {
		r.log.Debugw("triage discovery cut short", logging.FieldError, err)
	}
	for _, in := range discovered {
		if !seen[in.Source.Path] {
			inputs = append(inputs, in)
		}
	}
	return inputs
}

func (r *run) roots() []string {
	if len(r.req.Roots) > 0 {
		return r.req.Roots
	}
	return r.o.cfg.Roots
}

func (r *run) addResult(res engine.Result) {
	r.st.Sources = append(r.st.Sources, res.Source)
	r.st.Findings = append(r.st.Findings, res.Findings...)
	if res.Doc.Truncated {
		r.st.Truncated = append(r.st.Truncated, res.Source)
	}
}

func (r *run) addScan(res *scanner.Result) {
	for _, p := range res.Processed {
		r.addResult(p)
	}
	r.st.Errors = append(r.st.Errors, res.Errors...)
	if res.Partial {
		r.st.Partial = true
	}
}

// score computes the assessment. Outside Triage, resource and container
// signals are gathered only when the findings already point at a severe or
// container incident; Quick never samples.
func (r *run) score(ctx context.Context) {
	sc := r.o.deps.Scorer
	r.st.Assessment = sc.Score(r.st.Findings, r.st.Resources, r.st.Containers)
	if r.req.Mode == model.ModeTriage || r.req.Mode == model.ModeQuick {
		r.setSeverity()
		return
	}

	gathered := false
	if r.st.Assessment.Level >= model.ImpactHigh && r.o.deps.Resources != nil {
		if sig, err := r.o.deps.Resources.Sample(ctx); err != nil {
			r.collaboratorFailed("resources", err)
		} else {
			r.st.Resources = sig
			gathered = true
		}
	}
	wantContainers := r.st.Assessment.Level >= model.ImpactHigh ||
		r.st.Hypothesis == model.CategoryContainer ||
		classifier.Hypothesis(r.st.Findings) == model.CategoryContainer
	if wantContainers && r.o.deps.Containers != nil {
		if cs, err := r.o.deps.Containers.ListContainers(ctx); err != nil {
			r.collaboratorFailed("containers", err)
		} else {
			r.st.Containers = cs
			gathered = true
		}
	}
	if gathered {
		r.st.Assessment = sc.Score(r.st.Findings, r.st.Resources, r.st.Containers)
	}
	r.setSeverity()
}

func (r *run) setSeverity() {
	ix := dedup.Build(r.st.Findings)
	res := r.st.Resources
	r.st.Severity = func(f model.ErrorFinding) model.ImpactLevel {
		return r.o.deps.Scorer.Level(f, ix, res)
	}
}

// collaboratorFailed absorbs a collaborator error: the signal is omitted.
func (r *run) collaboratorFailed(name string, err error) {
	r.log.Warnw("collaborator unavailable", "collaborator", name, logging.FieldError, err)
	r.o.deps.Progress.EmitError(name, errors.WrapCollaborator(err, name))
}

func stageMessage(s State, req Request) string {
	switch s {
	case StateBasic:
		return "parsing " + req.LogPath
	case StateScan:
		return "scanning system logs"
	case StateQuick:
		return "classifying error description"
	case StateTriage:
		return "gathering evidence under deadline"
	case StateScored:
		return "scoring impact"
	case StateAssembled:
		return "assembling evidence package"
	case StateDone:
		return "done"
	}
	return string(s)
}
