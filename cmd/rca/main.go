package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/rca/internal/config"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rca",
	Short: "rca - root cause evidence collection for Linux hosts",
	Long: `rca - root cause evidence collection for Linux hosts.

rca reads log files, the systemd journal and container logs, matches them
against a catalog of known failure patterns, scores the impact and writes an
evidence package for a summarizer to turn into a root cause report.

Available commands:
  diagnose - Collect evidence for a described symptom
  catalog  - List the failure pattern catalog
  version  - Show version information

Examples:
  rca diagnose -e "nginx keeps restarting" -f /var/log/nginx/error.log
  rca diagnose -e "OOM on db host" --scan-system --hours 6
  rca diagnose -e "site down" --triage --budget 30s
  rca diagnose -e "java.lang.OutOfMemoryError: Java heap space" --quick
  rca catalog --json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		verbosity, _ := cmd.Flags().GetCount("verbose")
		level := logging.VerbosityToLevel(verbosity, logging.ParseLevel(cfg.Log.Level))
		if err := logging.Init(cfg.Log.JSON, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./rca.yaml or ~/.config/rca/rca.yaml)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Mark(err, errors.ErrInvalidConfiguration)
	})

	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		reportError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.IsInvalidConfiguration(err):
		return exitConfig
	default:
		return exitFailure
	}
}

// reportError prints err and any hints attached to it.
func reportError(w io.Writer, err error) {
	pterm.Error.WithWriter(w).Println(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		pterm.Info.WithWriter(w).Println(hint)
	}
}
