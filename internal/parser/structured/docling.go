package structured

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/rca/internal/connector/httpclient"
	"github.com/crimson-sun/rca/internal/errors"
)

// doclingFormats are the inputs docling-serve converts.
var doclingFormats = map[string]bool{
	"pdf": true, "docx": true, "pptx": true, "xlsx": true,
	"html": true, "htm": true, "md": true, "csv": true,
}

// Docling converts documents through a docling-serve instance.
type Docling struct {
	client   *httpclient.Client
	probeTTL time.Duration

	mu        sync.Mutex
	probedAt  time.Time
	available bool
}

// DoclingOption configures a Docling extractor.
type DoclingOption func(*doclingConfig)

type doclingConfig struct {
	timeout  time.Duration
	rps      float64
	token    string
	probeTTL time.Duration
}

// WithDoclingTimeout sets the per-request timeout (default 60s).
func WithDoclingTimeout(d time.Duration) DoclingOption {
	return func(c *doclingConfig) { c.timeout = d }
}

// WithDoclingRateLimit caps conversions per second (default 2).
func WithDoclingRateLimit(rps float64) DoclingOption {
	return func(c *doclingConfig) { c.rps = rps }
}

// WithDoclingToken sets a Bearer token for authenticated deployments.
func WithDoclingToken(token string) DoclingOption {
	return func(c *doclingConfig) { c.token = token }
}

// NewDocling creates an extractor for the docling-serve base URL.
func NewDocling(baseURL string, opts ...DoclingOption) *Docling {
	cfg := doclingConfig{timeout: 60 * time.Second, rps: 2, probeTTL: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	return &Docling{
		client: httpclient.New(strings.TrimRight(baseURL, "/"), cfg.token,
			httpclient.WithTimeout(cfg.timeout),
			httpclient.WithRateLimit(cfg.rps, 1),
			httpclient.WithRetries(1, 500*time.Millisecond),
		),
		probeTTL: cfg.probeTTL,
	}
}

func (d *Docling) Name() string { return "docling" }

func (d *Docling) Supports(format string) bool { return doclingFormats[format] }

// Available probes GET /health and caches the answer briefly.
func (d *Docling) Available(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.probedAt.IsZero() && time.Since(d.probedAt) < d.probeTTL {
		return d.available
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var health struct {
		Status string `json:"status"`
	}
	err := d.client.GetJSON(ctx, "/health", nil, &health)
	d.available = err == nil && (health.Status == "" || strings.EqualFold(health.Status, "ok"))
	d.probedAt = time.Now()
	return d.available
}

type doclingResponse struct {
	Document struct {
		Filename    string `json:"filename"`
		MDContent   string `json:"md_content"`
		TextContent string `json:"text_content"`
	} `json:"document"`
	Status         string  `json:"status"`
	Errors         []any   `json:"errors"`
	ProcessingTime float64 `json:"processing_time"`
}

// Extract uploads content to /v1/convert/file.
func (d *Docling) Extract(ctx context.Context, filename, format string, content []byte) (*Result, error) {
	if !d.Supports(format) {
		return nil, errors.Wrapf(ErrUnsupported, "docling: format %q", format)
	}
	values := url.Values{"to_formats": {"md", "text"}}
	var resp doclingResponse
	if err := d.client.PostFile(ctx, "/v1/convert/file", "files", filename, content, values, &resp); err != nil {
		return nil, errors.Wrap(err, "docling convert")
	}
	if resp.Status != "" && resp.Status != "success" && resp.Status != "partial_success" {
		return nil, errors.Newf("docling conversion status %q (%d errors)", resp.Status, len(resp.Errors))
	}

	text := resp.Document.TextContent
	if strings.TrimSpace(text) == "" {
		text = resp.Document.MDContent
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("docling returned no text")
	}

	hints := map[string]string{
		"format":          format,
		"converter":       "docling",
		"tables":          strconv.Itoa(countMarkdownTables(resp.Document.MDContent)),
		"processing_time": strconv.FormatFloat(resp.ProcessingTime, 'f', 3, 64),
	}
	if resp.Status == "partial_success" {
		hints["partial"] = "true"
	}
	return &Result{Text: text, Hints: hints}, nil
}

// countMarkdownTables counts header separator rows such as "|---|---|".
func countMarkdownTables(md string) int {
	n := 0
	for _, line := range strings.Split(md, "\n") {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "|") && strings.Contains(l, "---") &&
			strings.Trim(l, "|-: ") == "" {
			n++
		}
	}
	return n
}
