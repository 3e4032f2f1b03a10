package compactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \t\n  ", 0},
		{"hello", 2},       // 1.3 -> 2
		{"hello world", 3}, // 2.6 -> 3
		{strings.TrimSpace(strings.Repeat("word ", 500)), 650},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.in), "EstimateTokens(%q)", tt.in)
	}
}

func TestEstimateTokensLines(t *testing.T) {
	assert.Equal(t, 0, EstimateTokensLines(nil))
	// 4 words total -> 5.2 -> 6
	assert.Equal(t, 6, EstimateTokensLines([]string{"kernel panic", "Call Trace:"}))
	assert.Equal(t, EstimateTokens("a b c d"), EstimateTokensLines([]string{"a b", "c d"}))
}
