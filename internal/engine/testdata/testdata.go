// Package testdata embeds a labeled corpus of log lines used to validate the
// default pattern catalog and the classifier.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labeled log line. An empty ExpectedCategory marks a line
// that must not match any rule.
type CorpusEntry struct {
	Raw              string `json:"raw"`
	ExpectedCategory string `json:"expected_category"`
	ExpectedSeverity string `json:"expected_severity"`
	Description      string `json:"description"`
}

// Benign reports whether the entry should produce no matches.
func (e CorpusEntry) Benign() bool { return e.ExpectedCategory == "" }

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
