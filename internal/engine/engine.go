// Package engine runs the per-source unit of work: parse, then classify.
// Basic mode calls it once; every scanner worker calls it per source.
package engine

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/engine/classifier"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/parser"
)

// Opener returns the content of a non-file source.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Input is one source to process. Open is nil for files, which the parser
// reads from Source.Path.
type Input struct {
	Source model.LogSource
	Mode   parser.Mode
	Open   Opener
}

// Result is the outcome for one source. Err is set only when the source
// could not be read at all.
type Result struct {
	Source   model.LogSource
	Doc      model.ParsedDocument
	Findings []model.ErrorFinding
	Err      error
	Elapsed  time.Duration
}

// Engine is safe for concurrent use.
type Engine struct {
	parser     *parser.Parser
	classifier *classifier.Classifier
	log        *zap.SugaredLogger
}

// New creates an Engine.
func New(p *parser.Parser, cls *classifier.Classifier) *Engine {
	return &Engine{
		parser:     p,
		classifier: cls,
		log:        logging.Named("engine"),
	}
}

// Classifier returns the classifier in use.
func (e *Engine) Classifier() *classifier.Classifier { return e.classifier }

// Process parses and classifies one source. Parse happens-before classify.
func (e *Engine) Process(ctx context.Context, in Input) Result {
	start := time.Now()
	res := Result{Source: in.Source}

	doc, err := e.parse(ctx, in)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		e.log.Debugw("source unreadable", logging.FieldSource, in.Source.Path, logging.FieldError, err)
		return res
	}
	res.Doc = doc
	res.Findings = e.classifier.Classify(doc)
	res.Elapsed = time.Since(start)

	e.log.Debugw("source processed",
		logging.FieldSource, in.Source.Path,
		logging.FieldCount, len(res.Findings),
		"lines", len(doc.Lines),
		"truncated", doc.Truncated,
		logging.FieldDurationMS, res.Elapsed.Milliseconds(),
	)
	return res
}

func (e *Engine) parse(ctx context.Context, in Input) (model.ParsedDocument, error) {
	if in.Open == nil {
		return e.parser.Parse(ctx, in.Source, in.Mode)
	}
	rc, err := in.Open(ctx)
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(in.Source.Path, err)
	}
	defer rc.Close()
	return e.parser.ParseStream(ctx, in.Source, rc)
}
