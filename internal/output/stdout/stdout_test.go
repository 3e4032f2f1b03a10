package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
	"github.com/crimson-sun/rca/internal/report"
)

func testPackage() *model.EvidencePackage {
	return &model.EvidencePackage{
		RunID: "run-1",
		Mode:  model.ModeQuick,
		Findings: []model.ErrorFinding{{
			Category:        model.CategoryNetwork,
			BaseSeverity:    model.ImpactMedium,
			MatchedEvidence: []string{"connection refused", "connection refused again"},
			MatchCount:      2,
		}},
		Assessment: model.ImpactAssessment{Level: model.ImpactMedium},
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Encoding{Format: report.JSON, Verbosity: compactor.Standard})
		out.Write(context.Background(), testPackage())
	})

	// One package per line.
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["run_id"] != "run-1" {
		t.Fatalf("expected run_id=run-1, got %v", m["run_id"])
	}
	assessment := m["assessment"].(map[string]any)
	if assessment["level"] != "medium" {
		t.Fatalf("expected level=medium, got %v", assessment["level"])
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Encoding{Format: report.JSON, Pretty: true})
		out.Write(context.Background(), testPackage())
	})

	if !strings.Contains(result, "  ") {
		t.Fatal("expected indented output for pretty mode")
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected multi-line pretty output, got %d lines", len(lines))
	}
}

func TestOutputMinimalVerbosity(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Encoding{Format: report.JSON, Verbosity: compactor.Minimal})
		out.Write(context.Background(), testPackage())
	})

	var pkg model.EvidencePackage
	if err := json.Unmarshal([]byte(result), &pkg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(pkg.Findings[0].MatchedEvidence) != 1 {
		t.Fatalf("expected one excerpt at Minimal, got %d", len(pkg.Findings[0].MatchedEvidence))
	}
}

func TestOutputCloseIsNoop(t *testing.T) {
	if err := New(output.Encoding{}).Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
