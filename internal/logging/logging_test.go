package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0, zapcore.WarnLevel))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1, zapcore.WarnLevel))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(1, zapcore.DebugLevel))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2, zapcore.WarnLevel))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5, zapcore.ErrorLevel))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true, zapcore.InfoLevel)

	logger.Infow("test message", "key", "value")
	require.NoError(t, logger.Sync())

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "output: %s", buf.String())
	assert.Equal(t, "test message", m["msg"])
	assert.Equal(t, "value", m["key"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, zapcore.InfoLevel)

	logger.Infow("test message", "key", "value")
	logger.Debugw("hidden")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, `"key": "value"`)
	assert.False(t, strings.Contains(out, "hidden"), "debug must be filtered at info level")
}

func TestDefaultLoggerIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Named("scanner").Infow("before init")
		Sync()
	})
}
