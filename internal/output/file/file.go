// Package file persists each evidence package as its own report file in a
// directory, for handoff to a summarization consumer.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
)

const (
	defaultBufSize = 64 * 1024 // 64KB
	reportPrefix   = "rca_report_"
	timeLayout     = "20060102T150405Z"
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxReports keeps at most n reports in the directory, removing the
// oldest after each write. 0 (default) disables rotation.
func WithMaxReports(n int) Option {
	return func(o *Output) { o.maxReports = n }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes one rca_report_<timestamp>.<ext> file per package.
type Output struct {
	mu         sync.Mutex
	dir        string
	enc        output.Encoding
	maxReports int // 0 = no rotation
	bufSize    int
	last       string
}

// New creates a file output rooted at dir, creating it if needed.
func New(dir string, enc output.Encoding, opts ...Option) (*Output, error) {
	o := &Output{
		dir:     dir,
		enc:     enc,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "file output: create %s", dir)
	}
	return o, nil
}

// Write encodes pkg into a new report file. The file appears under its
// final name only once fully written.
func (o *Output) Write(_ context.Context, pkg *model.EvidencePackage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	path := o.nextPath(pkg)
	tmp, err := os.CreateTemp(o.dir, ".rca_report_*.tmp")
	if err != nil {
		return errors.Wrap(err, "file output: create")
	}
	w := bufio.NewWriterSize(tmp, o.bufSize)
	if err := o.enc.Encode(w, pkg); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "file output")
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "file output: flush")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "file output: close")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "file output: rename")
	}
	o.last = path

	if o.maxReports > 0 {
		if err := o.rotate(); err != nil {
			return errors.Wrap(err, "file output: rotate")
		}
	}
	return nil
}

// LastPath returns the path of the most recently written report.
func (o *Output) LastPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Close is a no-op; every Write leaves a complete file behind.
func (o *Output) Close() error {
	return nil
}

// nextPath names the report after the package's generation time. A
// collision within the same second gets a numeric suffix.
func (o *Output) nextPath(pkg *model.EvidencePackage) string {
	ts := pkg.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	base := reportPrefix + ts.UTC().Format(timeLayout)
	ext := "." + o.enc.Format.Ext()
	path := filepath.Join(o.dir, base+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(o.dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}

// rotate removes the oldest reports beyond maxReports. Report names sort
// chronologically.
func (o *Output) rotate() error {
	reports, err := o.reports()
	if err != nil {
		return err
	}
	for len(reports) > o.maxReports {
		if err := os.Remove(reports[0]); err != nil && !os.IsNotExist(err) {
			return err
		}
		reports = reports[1:]
	}
	return nil
}

func (o *Output) reports() ([]string, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), reportPrefix) {
			out = append(out, filepath.Join(o.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
