package rca

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/collector/container"
	"github.com/crimson-sun/rca/internal/collector/resource"
	"github.com/crimson-sun/rca/internal/config"
	"github.com/crimson-sun/rca/internal/connector"
	"github.com/crimson-sun/rca/internal/connector/containerlogs"
	"github.com/crimson-sun/rca/internal/connector/journal"
	"github.com/crimson-sun/rca/internal/engine"
	"github.com/crimson-sun/rca/internal/engine/catalog"
	"github.com/crimson-sun/rca/internal/engine/classifier"
	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/engine/scorer"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/orchestrator"
	"github.com/crimson-sun/rca/internal/parser"
	"github.com/crimson-sun/rca/internal/parser/structured"
	"github.com/crimson-sun/rca/internal/progress"
	"github.com/crimson-sun/rca/internal/scanner"
)

// RCA wires the pipeline once and runs any number of diagnoses.
type RCA struct {
	orch    *orchestrator.Orchestrator
	catalog *catalog.Catalog
	cfg     *config.Config
	log     *zap.SugaredLogger
}

// New builds an RCA instance from configuration. Loading a catalog file is
// the only I/O; collaborators are probed lazily per run.
func New(opts ...Option) (*RCA, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = logging.Named("rca")
	}
	if o.progress == nil {
		o.progress = progress.Nop{}
	}
	cfg := o.cfg

	cat := o.catalog
	if cat == nil {
		cat = catalog.Default()
		if cfg.Catalog.Path != "" {
			loaded, err := catalog.LoadFile(cfg.Catalog.Path)
			if err != nil {
				return nil, errors.Mark(errors.Wrap(err, "rca: load catalog"), errors.ErrInvalidConfiguration)
			}
			cat = loaded
		}
	}

	cmp := compactor.New(cfg.Verbosity(), compactor.WithMaxRunes(cfg.Classifier.ExcerptRunes))
	cls := classifier.New(cat,
		classifier.WithMaxExcerpts(cfg.Classifier.MaxExcerpts),
		classifier.WithCompactor(cmp),
	)
	eng := engine.New(newParser(cfg, o.logger), cls)

	if !o.hostless {
		if o.resources == nil {
			o.resources = resource.NewSampler()
		}
		if o.containers == nil {
			o.containers = container.NewMonitor()
		}
	}

	scanOpts := []scanner.Option{
		scanner.WithMaxDepth(cfg.Scan.MaxDepth),
		scanner.WithProgress(o.progress),
	}
	streams, err := streamConnectors(cfg, o)
	if err != nil {
		return nil, err
	}
	scanOpts = append(scanOpts, streams...)

	orch, err := orchestrator.New(orchestrator.Deps{
		Engine:     eng,
		Scanner:    scanner.New(eng, scanOpts...),
		Scorer:     scorer.New(scorerConfig(cfg)),
		Resources:  o.resources,
		Containers: o.containers,
		Progress:   o.progress,
		Logger:     o.logger.Named("orchestrator"),
	}, orchestrator.Config{
		Hours:        cfg.Scan.Hours,
		Roots:        cfg.Scan.Roots,
		Concurrency:  cfg.Scan.Concurrency,
		TriageBudget: cfg.Triage.Budget,
		TriageScan:   cfg.Triage.Scan,
	})
	if err != nil {
		return nil, err
	}
	return &RCA{orch: orch, catalog: cat, cfg: cfg, log: o.logger}, nil
}

// Diagnose runs one request. Errors are limited to invalid configuration
// and, in Basic mode, an unreadable log file; a partial Triage package is
// a success.
func (r *RCA) Diagnose(ctx context.Context, req Request) (*Package, error) {
	return r.orch.Run(ctx, orchestrator.Request{
		Mode:        req.Mode,
		Description: req.Description,
		LogPath:     req.LogPath,
		Hours:       req.Hours,
		Roots:       req.Roots,
		Budget:      req.Budget,
		Scan:        req.Scan,
	})
}

// CatalogVersion identifies the rule table in use.
func (r *RCA) CatalogVersion() string {
	return r.catalog.Version()
}

// Rules lists the catalog in evaluation order.
func (r *RCA) Rules() []Rule {
	rules := r.catalog.Rules()
	out := make([]Rule, 0, len(rules))
	for _, rl := range rules {
		out = append(out, Rule{
			Name:       rl.Name,
			Category:   string(rl.Category),
			Severity:   rl.BaseSeverity.String(),
			Confidence: rl.Confidence,
			Pattern:    rl.Pattern.String(),
			AppliesTo:  sortedSet(rl.AppliesTo),
		})
	}
	return out
}

// newParser builds the parser with the structured chain: the built-in HTML
// extractor, then docling-serve when configured.
func newParser(cfg *config.Config, log *zap.SugaredLogger) *parser.Parser {
	chain := structured.NewChain(structured.NewHTML())
	if cfg.Parser.DoclingURL != "" {
		chain.Register(structured.NewDocling(cfg.Parser.DoclingURL,
			structured.WithDoclingTimeout(cfg.Parser.StructuredTimeout),
			structured.WithDoclingRateLimit(cfg.Parser.DoclingRPS),
			structured.WithDoclingToken(cfg.Parser.DoclingToken),
		))
	}
	return parser.New(
		parser.WithExtractor(chain),
		parser.WithMaxSampleBytes(cfg.Parser.MaxSampleBytes),
		parser.WithMaxFileBytes(cfg.Parser.MaxFileBytes),
		parser.WithStructuredTimeout(cfg.Parser.StructuredTimeout),
		parser.WithLogger(log.Named("parser")),
	)
}

// streamConnectors binds the enabled stream providers from the registry.
// The container provider reuses an injected container client when it can
// also fetch logs.
func streamConnectors(cfg *config.Config, o options) ([]scanner.Option, error) {
	if o.hostless {
		return nil, nil
	}
	var out []scanner.Option
	if cfg.Scan.Journal {
		ctor, err := connector.Get(journal.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, scanner.WithConnector(ctor(), connector.Config{
			Provider: journal.Name,
			Extra:    map[string]string{"priority": cfg.Scan.JournalPriority},
		}))
	}
	if cfg.Scan.Containers {
		var conn connector.Connector
		if l, ok := o.containers.(containerlogs.Lister); ok {
			conn = containerlogs.New(l)
		} else {
			ctor, err := connector.Get(containerlogs.Name)
			if err != nil {
				return nil, err
			}
			conn = ctor()
		}
		out = append(out, scanner.WithConnector(conn, connector.Config{
			Provider: containerlogs.Name,
			Extra:    map[string]string{"lines": strconv.Itoa(cfg.Scan.ContainerLogLines)},
		}))
	}
	return out, nil
}

func scorerConfig(cfg *config.Config) scorer.Config {
	return scorer.Config{
		ConfidenceThreshold: cfg.Scorer.ConfidenceThreshold,
		MinSources:          cfg.Scorer.MinCorroboratingSources,
		CPUHighWater:        cfg.Scorer.CPUHighWater,
		MemHighWater:        cfg.Scorer.MemHighWater,
		CoincidenceWindow:   cfg.Scorer.CoincidenceWindow,
	}
}
