// Package parser turns a log source into a normalized ParsedDocument.
//
// Two paths exist. The structured path hands document formats (PDF, Office,
// HTML) to an external extractor; the plain path reads lines directly.
// Any structured failure falls back to the plain path on the same bytes, so
// the only hard error is a source that cannot be opened.
package parser

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/parser/structured"
)

const (
	// DefaultMaxSampleBytes is the plain-path ceiling; larger sources are
	// windowed to head and tail.
	DefaultMaxSampleBytes = 10 * 1024
	// DefaultMaxFileBytes bounds what is uploaded to a structured extractor.
	DefaultMaxFileBytes = 20 << 20
	// DefaultStructuredTimeout bounds one structured extraction.
	DefaultStructuredTimeout = 10 * time.Second

	sniffBytes = 512
)

// Parser is safe for concurrent use.
type Parser struct {
	extractor structured.Extractor
	maxSample int
	maxFile   int64
	timeout   time.Duration
	log       *zap.SugaredLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithExtractor sets the structured-document collaborator. Without one,
// structured requests always take the fallback path.
func WithExtractor(e structured.Extractor) Option {
	return func(p *Parser) { p.extractor = e }
}

// WithMaxSampleBytes sets the plain-path ceiling.
func WithMaxSampleBytes(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxSample = n
		}
	}
}

// WithMaxFileBytes sets the largest file sent to the structured extractor.
func WithMaxFileBytes(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFile = n
		}
	}
}

// WithStructuredTimeout bounds each structured extraction.
func WithStructuredTimeout(d time.Duration) Option {
	return func(p *Parser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Parser) { p.log = l }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		maxSample: DefaultMaxSampleBytes,
		maxFile:   DefaultMaxFileBytes,
		timeout:   DefaultStructuredTimeout,
		log:       logging.Named("parser"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse reads src. ModeAuto picks the path from the extension and magic
// bytes. The returned error is always a ParseError of kind unreadable.
func (p *Parser) Parse(ctx context.Context, src model.LogSource, mode Mode) (model.ParsedDocument, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}
	if info.IsDir() {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, errors.New("is a directory"))
	}
	size := info.Size()

	head := make([]byte, min(int64(sniffBytes), size))
	if _, err := f.ReadAt(head, 0); err != nil && err != io.EOF {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}
	format := DetectFormat(src.Path, head)
	if mode == ModeAuto {
		mode = DetectMode(src.Path, head)
	}

	if format == "gzip" {
		if doc, ok := p.parseGzip(src, f, size); ok {
			return doc, nil
		}
	}
	if mode == ModeStructured {
		return p.parseStructured(ctx, src, f, size, format)
	}

	s, err := sampleReaderAt(f, size, p.maxSample)
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}
	return p.document(src, s, format, model.ParsedPlain, nil), nil
}

// ParseStream reads a non-file source (journal output, container logs)
// through the plain path.
func (p *Parser) ParseStream(ctx context.Context, src model.LogSource, r io.Reader) (model.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return model.ParsedDocument{}, err
	}
	s, err := sampleReader(r, p.maxSample)
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}
	return p.document(src, s, "text", model.ParsedPlain, nil), nil
}

func (p *Parser) parseGzip(src model.LogSource, f *os.File, size int64) (model.ParsedDocument, bool) {
	zr, err := gzip.NewReader(io.NewSectionReader(f, 0, size))
	if err != nil {
		p.log.Debugw("gzip header invalid, reading raw bytes", logging.FieldSource, src.Path, logging.FieldError, err)
		return model.ParsedDocument{}, false
	}
	defer zr.Close()
	s, err := sampleReader(zr, p.maxSample)
	if err != nil && len(s.head) == 0 {
		p.log.Debugw("gzip stream unreadable, reading raw bytes", logging.FieldSource, src.Path, logging.FieldError, err)
		return model.ParsedDocument{}, false
	}
	return p.document(src, s, "gzip", model.ParsedPlain, nil), true
}

func (p *Parser) parseStructured(ctx context.Context, src model.LogSource, f *os.File, size int64, format string) (model.ParsedDocument, error) {
	fallback := func(s sample, reason string) model.ParsedDocument {
		p.log.Debugw("structured parse fell back to plain",
			logging.FieldSource, src.Path, "format", format, "reason", reason)
		doc := p.document(src, s, format, model.ParsedPlainFallback, nil)
		doc.Meta["fallback_reason"] = reason
		return doc
	}

	var reason string
	switch {
	case p.extractor == nil:
		reason = "no structured extractor configured"
	case !p.extractor.Supports(format):
		reason = "format " + format + " not supported by " + p.extractor.Name()
	case size > p.maxFile:
		reason = "file exceeds structured size limit"
	}
	if reason != "" {
		s, err := sampleReaderAt(f, size, p.maxSample)
		if err != nil {
			return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
		}
		return fallback(s, reason), nil
	}

	content, err := io.ReadAll(io.NewSectionReader(f, 0, size))
	if err != nil {
		return model.ParsedDocument{}, errors.NewUnreadable(src.Path, err)
	}

	res, err := p.extract(ctx, src.Path, format, content)
	if err != nil {
		s, _ := sampleReaderAt(bytes.NewReader(content), int64(len(content)), p.maxSample)
		return fallback(s, err.Error()), nil
	}

	text := []byte(res.Text)
	s, _ := sampleReaderAt(bytes.NewReader(text), int64(len(text)), p.maxSample)
	return p.document(src, s, format, model.ParsedStructured, res.Hints), nil
}

// extract runs the extractor under the structured timeout. The call runs on
// its own goroutine so an extractor that ignores ctx is abandoned rather
// than awaited, and a panic inside it is converted to an error.
func (p *Parser) extract(ctx context.Context, path, format string, content []byte) (*structured.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		res *structured.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: errors.Newf("extractor panic: %v", r)}
			}
		}()
		if !p.extractor.Available(ctx) {
			ch <- outcome{err: errors.New("extractor unavailable")}
			return
		}
		res, err := p.extractor.Extract(ctx, filepath.Base(path), format, content)
		if err == nil && res == nil {
			err = errors.New("extractor returned no result")
		}
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, errors.WrapCollaborator(o.err, p.extractor.Name())
	case <-ctx.Done():
		return nil, errors.WrapCollaborator(ctx.Err(), p.extractor.Name())
	}
}

// document assembles a ParsedDocument from a sample. hints is nil on every
// path except a successful structured extraction.
func (p *Parser) document(src model.LogSource, s sample, format, method string, hints map[string]string) model.ParsedDocument {
	enc := detectEncoding(s.head, s.tail)
	lines := splitLines(enc.decodeHead(s.head))
	if s.windowed() {
		lines = append(lines, omissionMarker(s.omitted))
		lines = append(lines, splitLines(enc.decodeTail(s.tail))...)
	}
	if method == model.ParsedStructured {
		enc.name = "utf-8"
	}

	meta := map[string]string{
		model.MetaParsingMethod: method,
		model.MetaEncoding:      enc.name,
		model.MetaFormat:        format,
		model.MetaDocumentType:  DetectDocumentType(lines),
		model.MetaLineCount:     strconv.Itoa(len(lines)),
	}
	if s.windowed() {
		meta[model.MetaOmittedBytes] = strconv.FormatInt(s.omitted, 10)
	}
	return model.ParsedDocument{
		Source:          src,
		Lines:           lines,
		StructuralHints: hints,
		Meta:            meta,
		Truncated:       s.windowed(),
	}
}
