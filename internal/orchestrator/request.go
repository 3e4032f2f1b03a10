package orchestrator

import (
	"os"
	"strings"
	"time"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

// Request is one diagnosis run.
type Request struct {
	Mode        model.Mode
	Description string
	// LogPath is the source for Basic mode; optional for Triage.
	LogPath string
	// Hours is the scan window; zero uses the configured default.
	Hours int
	// Roots overrides the configured scan roots.
	Roots []string
	// Budget overrides the configured Triage deadline.
	Budget time.Duration
	// Scan makes Triage scan the system as well.
	Scan bool
}

// Validate rejects a request before any stage runs. Every error is an
// invalid-configuration error.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return errors.WithHint(
			errors.NewInvalidConfigurationf("error description is empty"),
			"describe the symptom, e.g. --error \"service failed to start\"")
	}
	switch r.Mode {
	case model.ModeBasic, model.ModeScan, model.ModeQuick, model.ModeTriage:
	default:
		return errors.NewInvalidConfigurationf("unknown mode %q", r.Mode)
	}
	if r.Hours < 0 {
		return errors.NewInvalidConfigurationf("scan window must be positive, got %d hours", r.Hours)
	}
	if r.Budget < 0 {
		return errors.NewInvalidConfigurationf("triage budget must be positive, got %s", r.Budget)
	}
	if r.Mode == model.ModeBasic && r.LogPath == "" {
		return errors.WithHint(
			errors.NewInvalidConfigurationf("basic mode requires a log file"),
			"pass --logfile PATH, or use --scan-system or --quick")
	}
	if r.LogPath != "" && (r.Mode == model.ModeBasic || r.Mode == model.ModeTriage) {
		info, err := os.Stat(r.LogPath)
		if err != nil {
			return errors.NewInvalidConfigurationf("log file %s: %v", r.LogPath, err)
		}
		if info.IsDir() {
			return errors.NewInvalidConfigurationf("log file %s is a directory", r.LogPath)
		}
	}
	return nil
}
