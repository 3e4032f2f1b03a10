package compactor

import (
	"math"
	"strings"
)

// EstimateTokens returns an approximate token count using a whitespace heuristic.
// Splits on whitespace, applies a 1.3x subword expansion factor (rounded up).
// Accurate within ~20% of BPE counts, which is enough to tell the report
// consumer how large a package is before it is sent to a model.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	words := len(strings.Fields(s))
	return int(math.Ceil(float64(words) * 1.3))
}

// EstimateTokensLines sums EstimateTokens over lines.
func EstimateTokensLines(lines []string) int {
	words := 0
	for _, l := range lines {
		words += len(strings.Fields(l))
	}
	return int(math.Ceil(float64(words) * 1.3))
}
