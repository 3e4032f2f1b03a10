package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging across rca.
const (
	FieldMode       = "mode"
	FieldSource     = "source"
	FieldKind       = "kind"
	FieldCategory   = "category"
	FieldLevel      = "level"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldState      = "state"
	FieldRunID      = "run_id"
)

// Logger is the process-wide logger. It starts as a no-op so library use
// never panics before Init is called.
var Logger = zap.NewNop().Sugar()

// Init creates and sets the package-level logger.
// Output always goes to stderr: stdout carries the evidence package.
// When jsonOutput is true, uses the zap production JSON encoder;
// otherwise a console encoder for human readability.
func Init(jsonOutput bool, level zapcore.Level) error {
	Logger = New(os.Stderr, jsonOutput, level)
	return nil
}

// New builds a logger writing to w. Exposed so tests can capture output.
func New(w io.Writer, jsonOutput bool, level zapcore.Level) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if jsonOutput {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core).Sugar()
}

// Named returns a child of the package logger for one component.
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}

// Sync flushes any buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to a zap level.
// Unknown strings default to InfoLevel.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// VerbosityToLevel maps -v flag counts to zap levels, starting from base.
//
//	0     -> base
//	1 -v  -> InfoLevel (or base if already lower)
//	2+    -> DebugLevel
func VerbosityToLevel(verbosity int, base zapcore.Level) zapcore.Level {
	switch {
	case verbosity <= 0:
		return base
	case verbosity == 1:
		if base < zapcore.InfoLevel {
			return base
		}
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
