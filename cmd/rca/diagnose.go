package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/rca/internal/config"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
	"github.com/crimson-sun/rca/internal/output/async"
	"github.com/crimson-sun/rca/internal/output/file"
	"github.com/crimson-sun/rca/internal/output/multi"
	"github.com/crimson-sun/rca/internal/output/stdout"
	"github.com/crimson-sun/rca/internal/output/webhook"
	"github.com/crimson-sun/rca/internal/progress"
	"github.com/crimson-sun/rca/internal/report"
	"github.com/crimson-sun/rca/pkg/rca"
)

type diagnoseFlags struct {
	description string
	logFile     string
	scanSystem  bool
	triage      bool
	quick       bool
	hours       int
	budget      time.Duration
	roots       []string
	jsonOut     bool
	pretty      bool
	outDir      string
	noSave      bool
	format      string
}

var diagFlags diagnoseFlags

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Collect evidence for a described symptom",
	Long: `Collect evidence for a described symptom and write an evidence package.

Modes:
  basic  (default)      read the file given by --logfile
  scan   --scan-system  discover and read recent logs across the host
  triage --triage       scan under a hard time budget, severe findings first
  quick  --quick        classify the description text alone

The package is saved under output.dir (override with --out) and, with --json,
also written to stdout. Progress and logs go to stderr.`,
	Example: `  rca diagnose -e "nginx keeps restarting" -f /var/log/nginx/error.log
  rca diagnose -e "disk errors since reboot" --scan-system --hours 2
  rca diagnose -e "site down" --triage --budget 20s --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		return runDiagnose(cmd.Context(), cmd.OutOrStdout(), cfg, diagFlags, verbosity)
	},
}

func init() {
	f := diagnoseCmd.Flags()
	f.StringVarP(&diagFlags.description, "error", "e", "", "Description of the symptom (required)")
	f.StringVarP(&diagFlags.logFile, "logfile", "f", "", "Log file to analyze")
	f.BoolVarP(&diagFlags.scanSystem, "scan-system", "s", false, "Scan the host for recent logs")
	f.BoolVarP(&diagFlags.triage, "triage", "t", false, "Run under the triage time budget")
	f.BoolVarP(&diagFlags.quick, "quick", "q", false, "Classify the description only")
	f.IntVar(&diagFlags.hours, "hours", 0, "Scan window in hours (default: scan.hours)")
	f.DurationVar(&diagFlags.budget, "budget", 0, "Triage time budget (default: triage.budget)")
	f.StringSliceVar(&diagFlags.roots, "root", nil, "Scan root, repeatable (default: scan.roots)")
	f.BoolVar(&diagFlags.jsonOut, "json", false, "Write the package to stdout as JSON and emit JSON progress")
	f.BoolVar(&diagFlags.pretty, "pretty", false, "Indent JSON output")
	f.StringVarP(&diagFlags.outDir, "out", "o", "", "Report directory (default: output.dir)")
	f.BoolVar(&diagFlags.noSave, "no-save", false, "Do not save the package to the report directory")
	f.StringVar(&diagFlags.format, "format", "", "Saved report format: json or msgpack (default: output.format)")
}

// resolveRequest turns flags into a request. Quick and triage are mutually
// exclusive, and quick never reads files.
func resolveRequest(f diagnoseFlags) (rca.Request, error) {
	req := rca.Request{
		Description: strings.TrimSpace(f.description),
		LogPath:     f.logFile,
		Hours:       f.hours,
		Roots:       f.roots,
		Budget:      f.budget,
	}
	if req.Description == "" {
		return req, errors.WithHint(
			errors.NewInvalidConfigurationf("--error is required"),
			`describe the symptom, e.g. --error "nginx keeps restarting"`)
	}
	if f.quick && (f.triage || f.scanSystem || f.logFile != "") {
		return req, errors.WithHint(
			errors.NewInvalidConfigurationf("--quick cannot be combined with --triage, --scan-system or --logfile"),
			"quick mode classifies the description text only")
	}

	switch {
	case f.triage:
		req.Mode = rca.ModeTriage
		req.Scan = f.scanSystem
	case f.quick:
		req.Mode = rca.ModeQuick
	case f.scanSystem:
		req.Mode = rca.ModeScan
	default:
		req.Mode = rca.ModeBasic
		if f.logFile == "" {
			return req, errors.WithHint(
				errors.NewInvalidConfigurationf("basic mode needs --logfile"),
				"pass --logfile, or --scan-system to search the host")
		}
	}
	return req, nil
}

// applyOverrides folds output flags into cfg.
func applyOverrides(cfg *config.Config, f diagnoseFlags) error {
	if f.outDir != "" {
		cfg.Output.Dir = f.outDir
	}
	if f.format != "" {
		if _, err := report.ParseFormat(f.format); err != nil {
			return errors.Mark(errors.Wrap(err, "--format"), errors.ErrInvalidConfiguration)
		}
		cfg.Output.Format = f.format
	}
	if f.pretty {
		cfg.Output.Pretty = true
	}
	return nil
}

func runDiagnose(ctx context.Context, w io.Writer, cfg *config.Config, f diagnoseFlags, verbosity int) error {
	req, err := resolveRequest(f)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, f); err != nil {
		return err
	}

	var emitter progress.Emitter = progress.NewCLIEmitter(os.Stderr, verbosity)
	if f.jsonOut {
		emitter = progress.NewJSONEmitter(os.Stderr)
	}

	r, err := rca.New(
		rca.WithConfig(cfg),
		rca.WithProgress(emitter),
		rca.WithLogger(logging.Named("rca")),
	)
	if err != nil {
		return err
	}

	sinks, saved, err := buildOutputs(cfg, f)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %v, stopping...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	pkg, err := r.Diagnose(ctx, req)
	if err != nil {
		_ = sinks.Close()
		return err
	}

	deliver(ctx, sinks, pkg)
	if !f.jsonOut {
		path := ""
		if saved != nil {
			path = saved.LastPath()
		}
		printSummary(w, pkg, path)
	}
	return nil
}

// deliver hands pkg to every sink. The package is already assembled, so a
// failing sink is logged and does not fail the run.
func deliver(ctx context.Context, sinks output.Output, pkg *model.EvidencePackage) bool {
	err := errors.Join(sinks.Write(ctx, pkg), sinks.Close())
	if err != nil {
		logging.Named("output").Warnw("evidence package not delivered to every sink",
			logging.FieldRunID, pkg.RunID, logging.FieldError, err)
		return false
	}
	return true
}

// buildOutputs assembles the sinks for one run. The returned file sink is
// nil when saving is disabled.
func buildOutputs(cfg *config.Config, f diagnoseFlags) (output.Output, *file.Output, error) {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, nil, errors.Mark(err, errors.ErrInvalidConfiguration)
	}

	var sinks []output.Output
	if f.jsonOut {
		sinks = append(sinks, stdout.New(output.Encoding{
			Format:    report.JSON,
			Pretty:    cfg.Output.Pretty,
			Verbosity: cfg.Verbosity(),
		}))
	}

	var saved *file.Output
	if !f.noSave && cfg.Output.Dir != "" {
		saved, err = file.New(cfg.Output.Dir, output.Encoding{
			Format:    format,
			Pretty:    cfg.Output.Pretty,
			Verbosity: cfg.Verbosity(),
		}, file.WithMaxReports(cfg.Output.MaxReports))
		if err != nil {
			return nil, nil, errors.WithHint(err, "set output.dir or pass --out to a writable directory")
		}
		sinks = append(sinks, saved)
	}

	if cfg.Output.WebhookURL != "" {
		log := logging.Named("output")
		hook := webhook.New(cfg.Output.WebhookURL, webhook.WithToken(cfg.Output.WebhookToken))
		sinks = append(sinks, async.New(hook, async.WithOnError(func(err error) {
			log.Warnw("webhook delivery failed", logging.FieldError, err)
		})))
	}
	return multi.New(sinks...), saved, nil
}

func printSummary(w io.Writer, pkg *model.EvidencePackage, path string) {
	a := pkg.Assessment
	fmt.Fprintf(w, "%s %s   %s %s   %s %s   %s %s\n",
		pterm.Bold.Sprint("Impact:"), levelStyle(a.Level).Sprint(a.Level),
		pterm.Bold.Sprint("Hypothesis:"), hypothesis(pkg.Hypothesis),
		pterm.Bold.Sprint("Mode:"), pkg.Mode,
		pterm.Bold.Sprint("Elapsed:"), pkg.Elapsed())

	for _, r := range a.Rationale {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	if len(a.AffectedServices) > 0 {
		fmt.Fprintf(w, "%s %s\n", pterm.Bold.Sprint("Affected:"), strings.Join(a.AffectedServices, ", "))
	}

	if len(pkg.Findings) > 0 {
		data := pterm.TableData{{"Category", "Severity", "Matches", "Confidence", "Source"}}
		for _, fd := range pkg.Findings {
			data = append(data, []string{
				string(fd.Category),
				fd.BaseSeverity.String(),
				fmt.Sprint(fd.MatchCount),
				fmt.Sprintf("%.2f", fd.RawConfidence),
				fd.Source.Path,
			})
		}
		if table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender(); err == nil {
			fmt.Fprintln(w, table)
		}
	} else {
		fmt.Fprintln(w, "No known failure patterns matched.")
	}

	fmt.Fprintf(w, "%d sources scanned", len(pkg.SourcesScanned))
	if n := len(pkg.TruncatedSources); n > 0 {
		fmt.Fprintf(w, ", %d truncated", n)
	}
	if n := len(pkg.Errors); n > 0 {
		fmt.Fprintf(w, ", %d unreadable", n)
	}
	fmt.Fprintln(w)
	if pkg.Partial {
		pterm.Warning.WithWriter(w).Println("Time budget expired; the package is partial")
	}
	if path != "" {
		fmt.Fprintf(w, "%s %s\n", pterm.Bold.Sprint("Report:"), path)
	}
}

func levelStyle(l model.ImpactLevel) pterm.Color {
	switch {
	case l >= model.ImpactCritical:
		return pterm.FgRed
	case l >= model.ImpactHigh:
		return pterm.FgLightRed
	case l >= model.ImpactMedium:
		return pterm.FgYellow
	default:
		return pterm.FgGreen
	}
}

func hypothesis(c model.ErrorCategory) string {
	if c == "" {
		return "none"
	}
	return string(c)
}
