// Package webhook hands evidence packages to a summarization consumer over
// HTTP.
package webhook

import (
	"context"
	"time"

	"github.com/crimson-sun/rca/internal/connector/httpclient"
	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/report"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultRetries     = 3
	defaultBaseBackoff = time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithToken sends the token as a Bearer Authorization header.
func WithToken(token string) Option {
	return func(o *Output) { o.token = token }
}

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.timeout = d }
}

// WithRetries sets how many times a 429 or 5xx response is retried and the
// first backoff delay, which doubles per attempt. Default: 3, 1s.
func WithRetries(n int, base time.Duration) Option {
	return func(o *Output) {
		o.retries = n
		o.backoff = base
	}
}

// WithVerbosity trims the package before sending. Default: Full.
func WithVerbosity(v compactor.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// Output POSTs each evidence package to an HTTP endpoint as one JSON
// document. Retries on 429 and 5xx with exponential backoff; 4xx fails
// immediately.
type Output struct {
	client    *httpclient.Client
	token     string
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	verbosity compactor.Verbosity
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		backoff:   defaultBaseBackoff,
		verbosity: compactor.Full,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = httpclient.New(url, o.token,
		httpclient.WithTimeout(o.timeout),
		httpclient.WithRetries(o.retries, o.backoff),
	)
	return o
}

// Write sends pkg and waits for the consumer to acknowledge it.
func (o *Output) Write(ctx context.Context, pkg *model.EvidencePackage) error {
	if err := o.client.PostJSON(ctx, "", report.Trim(pkg, o.verbosity), nil); err != nil {
		return errors.Wrapf(err, "webhook %s", o.client.BaseURL())
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
