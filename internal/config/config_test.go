package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/scanner"
)

// isolate runs the test in an empty working directory with no RCA_*
// variables set, so neither a stray rca.yaml nor .env leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	return dir
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Scan.Hours)
	assert.Equal(t, scanner.DefaultRoots, cfg.Scan.Roots)
	assert.Equal(t, 4, cfg.Scan.MaxDepth)
	assert.Equal(t, runtime.NumCPU(), cfg.Scan.Concurrency)
	assert.True(t, cfg.Scan.Journal)
	assert.True(t, cfg.Scan.Containers)
	assert.Equal(t, 10240, cfg.Parser.MaxSampleBytes)
	assert.Equal(t, int64(20<<20), cfg.Parser.MaxFileBytes)
	assert.Equal(t, 10*time.Second, cfg.Parser.StructuredTimeout)
	assert.Empty(t, cfg.Parser.DoclingURL)
	assert.Equal(t, 5, cfg.Classifier.MaxExcerpts)
	assert.Equal(t, 0.8, cfg.Scorer.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Scorer.MinCorroboratingSources)
	assert.Equal(t, 30*time.Second, cfg.Triage.Budget)
	assert.False(t, cfg.Triage.Scan)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Output.Pretty)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, compactor.Standard, cfg.Verbosity())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RCA_SCAN_HOURS", "6")
	t.Setenv("RCA_SCAN_ROOTS", "/srv/logs,/data/logs")
	t.Setenv("RCA_TRIAGE_BUDGET", "5s")
	t.Setenv("RCA_TRIAGE_SCAN", "true")
	t.Setenv("RCA_SCORER_CPU_HIGH_WATER", "75.5")
	t.Setenv("RCA_OUTPUT_FORMAT", "msgpack")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Scan.Hours)
	assert.Equal(t, []string{"/srv/logs", "/data/logs"}, cfg.Scan.Roots)
	assert.Equal(t, 5*time.Second, cfg.Triage.Budget)
	assert.True(t, cfg.Triage.Scan)
	assert.Equal(t, 75.5, cfg.Scorer.CPUHighWater)
	assert.Equal(t, "msgpack", cfg.Output.Format)
}

func TestLoad_ConfigFileSearch(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rca.yaml"), []byte(`
scan:
  hours: 12
  journal: false
classifier:
  verbosity: minimal
triage:
  budget: 10s
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Scan.Hours)
	assert.False(t, cfg.Scan.Journal)
	assert.Equal(t, 10*time.Second, cfg.Triage.Budget)
	assert.Equal(t, compactor.Minimal, cfg.Verbosity())
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Classifier.MaxExcerpts)
}

func TestLoad_ExplicitTOMLFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[scorer]
min_corroborating_sources = 3

[output]
pretty = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scorer.MinCorroboratingSources)
	assert.True(t, cfg.Output.Pretty)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rca.yaml"), []byte("scan:\n  hours: 12\n"), 0o644))
	t.Setenv("RCA_SCAN_HOURS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scan.Hours)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RCA_SCAN_CONCURRENCY=2\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RCA_SCAN_CONCURRENCY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scan.Concurrency)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rca.yaml"), []byte("scan: [unclosed\n"), 0o644))

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestLoad_InvalidValueRejected(t *testing.T) {
	isolate(t)
	t.Setenv("RCA_SCAN_HOURS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfiguration(err))
	assert.Contains(t, err.Error(), "scan.hours")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"hours", func(c *Config) { c.Scan.Hours = -1 }, "scan.hours"},
		{"concurrency", func(c *Config) { c.Scan.Concurrency = 0 }, "scan.concurrency"},
		{"depth", func(c *Config) { c.Scan.MaxDepth = -1 }, "scan.max_depth"},
		{"sample", func(c *Config) { c.Parser.MaxSampleBytes = 0 }, "parser.max_sample_bytes"},
		{"structured timeout", func(c *Config) { c.Parser.StructuredTimeout = 0 }, "parser.structured_timeout"},
		{"excerpts", func(c *Config) { c.Classifier.MaxExcerpts = 0 }, "classifier.max_excerpts"},
		{"confidence", func(c *Config) { c.Scorer.ConfidenceThreshold = 1.5 }, "scorer.confidence_threshold"},
		{"cpu", func(c *Config) { c.Scorer.CPUHighWater = 120 }, "scorer.cpu_high_water"},
		{"mem", func(c *Config) { c.Scorer.MemHighWater = -5 }, "scorer.mem_high_water"},
		{"budget", func(c *Config) { c.Triage.Budget = 0 }, "triage.budget"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfiguration(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
