package testdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCorpus(t *testing.T) {
	entries, err := LoadCorpus()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for i, e := range entries {
		assert.NotEmpty(t, e.Raw, "entry[%d] raw", i)
		assert.NotEmpty(t, e.Description, "entry[%d] description", i)
		if !e.Benign() {
			assert.NotEmpty(t, e.ExpectedSeverity, "entry[%d] severity", i)
		}
	}
}

func TestCorpusCoverage(t *testing.T) {
	entries, err := LoadCorpus()
	require.NoError(t, err)

	covered := map[string]int{}
	benign := 0
	for _, e := range entries {
		if e.Benign() {
			benign++
			continue
		}
		covered[e.ExpectedCategory]++
	}

	for _, cat := range []string{"kernel", "selinux", "jvm", "systemd", "network", "boot", "application", "hardware", "container"} {
		assert.GreaterOrEqual(t, covered[cat], 2, "category %s needs at least two labeled lines", cat)
	}
	assert.GreaterOrEqual(t, benign, 3, "corpus needs benign lines to catch false positives")
}
