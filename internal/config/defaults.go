package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/crimson-sun/rca/internal/scanner"
)

// SetDefaults registers a default for every configuration key. Environment
// overrides only reach Unmarshal for keys viper knows about, so every key
// needs one.
func SetDefaults(v *viper.Viper) {
	// Discovery
	v.SetDefault("scan.hours", 24)
	v.SetDefault("scan.roots", scanner.DefaultRoots)
	v.SetDefault("scan.max_depth", scanner.DefaultMaxDepth)
	v.SetDefault("scan.concurrency", runtime.NumCPU())
	v.SetDefault("scan.journal", true)
	v.SetDefault("scan.containers", true)
	v.SetDefault("scan.journal_priority", "err")
	v.SetDefault("scan.container_log_lines", 100)

	// Parser
	v.SetDefault("parser.max_sample_bytes", 10240)
	v.SetDefault("parser.max_file_bytes", 20<<20) // 20 MiB
	v.SetDefault("parser.structured_timeout", 10*time.Second)
	v.SetDefault("parser.docling_url", "")
	v.SetDefault("parser.docling_token", "")
	v.SetDefault("parser.docling_rps", 2.0)

	// Classifier
	v.SetDefault("classifier.max_excerpts", 5)
	v.SetDefault("classifier.excerpt_runes", 240)
	v.SetDefault("classifier.verbosity", "standard")

	v.SetDefault("catalog.path", "")

	// Scorer thresholds
	v.SetDefault("scorer.confidence_threshold", 0.8)
	v.SetDefault("scorer.min_corroborating_sources", 2)
	v.SetDefault("scorer.cpu_high_water", 90.0)
	v.SetDefault("scorer.mem_high_water", 90.0)
	v.SetDefault("scorer.coincidence_window", 15*time.Minute)

	// Triage
	v.SetDefault("triage.budget", 30*time.Second)
	v.SetDefault("triage.scan", false)

	// Output
	v.SetDefault("output.dir", filepath.Join(os.TempDir(), "rca-reports"))
	v.SetDefault("output.max_reports", 50)
	v.SetDefault("output.webhook_url", "")
	v.SetDefault("output.webhook_token", "")
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.format", "json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}
