// Package config loads rca settings from defaults, an optional config file,
// a .env file and RCA_* environment variables, in increasing precedence.
package config

import (
	"time"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/report"
)

// Config holds all rca configuration.
type Config struct {
	Scan       ScanConfig       `mapstructure:"scan"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Scorer     ScorerConfig     `mapstructure:"scorer"`
	Triage     TriageConfig     `mapstructure:"triage"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
}

// ScanConfig controls source discovery.
type ScanConfig struct {
	Hours       int      `mapstructure:"hours"`
	Roots       []string `mapstructure:"roots"`
	MaxDepth    int      `mapstructure:"max_depth"`
	Concurrency int      `mapstructure:"concurrency"`
	Journal     bool     `mapstructure:"journal"`
	Containers  bool     `mapstructure:"containers"`
	// JournalPriority is the journalctl --priority floor.
	JournalPriority string `mapstructure:"journal_priority"`
	// ContainerLogLines is the --tail length per container.
	ContainerLogLines int `mapstructure:"container_log_lines"`
}

// ParserConfig controls the source parser and the structured collaborator.
type ParserConfig struct {
	MaxSampleBytes    int           `mapstructure:"max_sample_bytes"`
	MaxFileBytes      int64         `mapstructure:"max_file_bytes"`
	StructuredTimeout time.Duration `mapstructure:"structured_timeout"`
	DoclingURL        string        `mapstructure:"docling_url"`
	DoclingToken      string        `mapstructure:"docling_token"`
	DoclingRPS        float64       `mapstructure:"docling_rps"`
}

// ClassifierConfig controls evidence retention.
type ClassifierConfig struct {
	MaxExcerpts  int    `mapstructure:"max_excerpts"`
	ExcerptRunes int    `mapstructure:"excerpt_runes"`
	Verbosity    string `mapstructure:"verbosity"` // "minimal", "standard", "full"
}

// CatalogConfig selects the rule table. An empty path uses the built-in one.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// ScorerConfig holds the escalation thresholds.
type ScorerConfig struct {
	ConfidenceThreshold     float64       `mapstructure:"confidence_threshold"`
	MinCorroboratingSources int           `mapstructure:"min_corroborating_sources"`
	CPUHighWater            float64       `mapstructure:"cpu_high_water"`
	MemHighWater            float64       `mapstructure:"mem_high_water"`
	CoincidenceWindow       time.Duration `mapstructure:"coincidence_window"`
}

// TriageConfig holds the Triage deadline.
type TriageConfig struct {
	Budget time.Duration `mapstructure:"budget"`
	Scan   bool          `mapstructure:"scan"`
}

// OutputConfig holds package destination settings.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxReports   int    `mapstructure:"max_reports"`
	WebhookURL   string `mapstructure:"webhook_url"`
	WebhookToken string `mapstructure:"webhook_token"`
	Pretty       bool   `mapstructure:"pretty"`
	Format       string `mapstructure:"format"` // "json" or "msgpack"
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Verbosity returns the parsed excerpt verbosity.
func (c *Config) Verbosity() compactor.Verbosity {
	return compactor.ParseVerbosity(c.Classifier.Verbosity)
}

// Validate reports the first invalid setting. Every error is an
// invalid-configuration error.
func (c *Config) Validate() error {
	switch {
	case c.Scan.Hours <= 0:
		return errors.NewInvalidConfigurationf("scan.hours must be positive, got %d", c.Scan.Hours)
	case c.Scan.Concurrency < 1:
		return errors.NewInvalidConfigurationf("scan.concurrency must be at least 1, got %d", c.Scan.Concurrency)
	case c.Scan.MaxDepth < 0:
		return errors.NewInvalidConfigurationf("scan.max_depth must not be negative, got %d", c.Scan.MaxDepth)
	case c.Scan.ContainerLogLines < 1:
		return errors.NewInvalidConfigurationf("scan.container_log_lines must be at least 1, got %d", c.Scan.ContainerLogLines)
	case c.Parser.MaxSampleBytes <= 0:
		return errors.NewInvalidConfigurationf("parser.max_sample_bytes must be positive, got %d", c.Parser.MaxSampleBytes)
	case c.Parser.MaxFileBytes <= 0:
		return errors.NewInvalidConfigurationf("parser.max_file_bytes must be positive, got %d", c.Parser.MaxFileBytes)
	case c.Parser.StructuredTimeout <= 0:
		return errors.NewInvalidConfigurationf("parser.structured_timeout must be positive, got %s", c.Parser.StructuredTimeout)
	case c.Parser.DoclingRPS < 0:
		return errors.NewInvalidConfigurationf("parser.docling_rps must not be negative, got %g", c.Parser.DoclingRPS)
	case c.Classifier.MaxExcerpts < 1:
		return errors.NewInvalidConfigurationf("classifier.max_excerpts must be at least 1, got %d", c.Classifier.MaxExcerpts)
	case c.Classifier.ExcerptRunes < 1:
		return errors.NewInvalidConfigurationf("classifier.excerpt_runes must be at least 1, got %d", c.Classifier.ExcerptRunes)
	case c.Scorer.ConfidenceThreshold < 0 || c.Scorer.ConfidenceThreshold > 1:
		return errors.NewInvalidConfigurationf("scorer.confidence_threshold must be in [0,1], got %g", c.Scorer.ConfidenceThreshold)
	case c.Scorer.MinCorroboratingSources < 1:
		return errors.NewInvalidConfigurationf("scorer.min_corroborating_sources must be at least 1, got %d", c.Scorer.MinCorroboratingSources)
	case c.Scorer.CPUHighWater < 0 || c.Scorer.CPUHighWater > 100:
		return errors.NewInvalidConfigurationf("scorer.cpu_high_water must be in [0,100], got %g", c.Scorer.CPUHighWater)
	case c.Scorer.MemHighWater < 0 || c.Scorer.MemHighWater > 100:
		return errors.NewInvalidConfigurationf("scorer.mem_high_water must be in [0,100], got %g", c.Scorer.MemHighWater)
	case c.Scorer.CoincidenceWindow <= 0:
		return errors.NewInvalidConfigurationf("scorer.coincidence_window must be positive, got %s", c.Scorer.CoincidenceWindow)
	case c.Triage.Budget <= 0:
		return errors.NewInvalidConfigurationf("triage.budget must be positive, got %s", c.Triage.Budget)
	case c.Output.MaxReports < 0:
		return errors.NewInvalidConfigurationf("output.max_reports must not be negative, got %d", c.Output.MaxReports)
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return errors.Wrap(err, "output.format")
	}
	return nil
}
