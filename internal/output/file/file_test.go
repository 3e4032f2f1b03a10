package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
	"github.com/crimson-sun/rca/internal/report"
)

func testPackage(at time.Time) *model.EvidencePackage {
	return &model.EvidencePackage{
		RunID:       "run-" + at.Format("150405"),
		Mode:        model.ModeScan,
		Assessment:  model.ImpactAssessment{Level: model.ImpactLow},
		GeneratedAt: at,
	}
}

var jsonEnc = output.Encoding{Format: report.JSON, Verbosity: compactor.Standard}

func TestWriteCreatesReportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	out, err := New(dir, jsonEnc)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	if err := out.Write(context.Background(), testPackage(at)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out.Close()

	want := filepath.Join(dir, "rca_report_20261018T093000Z.json")
	if out.LastPath() != want {
		t.Fatalf("LastPath = %q, want %q", out.LastPath(), want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var pkg model.EvidencePackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if pkg.RunID != "run-093000" {
		t.Errorf("run_id = %q", pkg.RunID)
	}
}

func TestWriteMsgPackExtension(t *testing.T) {
	dir := t.TempDir()
	out, err := New(dir, output.Encoding{Format: report.MsgPack})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := out.Write(context.Background(), testPackage(time.Now())); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.HasSuffix(out.LastPath(), ".msgpack") {
		t.Fatalf("expected .msgpack report, got %s", out.LastPath())
	}
	f, err := os.Open(out.LastPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := report.Decode(f, report.MsgPack); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
}

func TestSameSecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	out, _ := New(dir, jsonEnc)
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := out.Write(context.Background(), testPackage(at)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Fatalf("got %d files, want 3", len(entries))
	}
	if filepath.Base(out.LastPath()) != "rca_report_20261018T093000Z_2.json" {
		t.Errorf("LastPath = %s", out.LastPath())
	}
}

func TestRotationKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	out, err := New(dir, jsonEnc, WithMaxReports(2))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testPackage(base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("got %d files after rotation, want 2", len(entries))
	}
	if entries[0].Name() != "rca_report_20261018T090300Z.json" || entries[1].Name() != "rca_report_20261018T090400Z.json" {
		t.Errorf("kept %s, %s", entries[0].Name(), entries[1].Name())
	}
}

func TestRotationIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644)
	out, _ := New(dir, jsonEnc, WithMaxReports(1))
	out.Write(context.Background(), testPackage(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	out.Write(context.Background(), testPackage(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))

	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatal("rotation must only touch report files")
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	out, _ := New(dir, jsonEnc)
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := out.Write(context.Background(), testPackage(at)); err != nil {
				t.Errorf("Write error: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 10 {
		t.Fatalf("got %d files, want 10", len(entries))
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestNewFailsOnUnwritableDir(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	os.WriteFile(parent, []byte("x"), 0o644)
	if _, err := New(filepath.Join(parent, "reports"), jsonEnc); err == nil {
		t.Fatal("expected error when dir cannot be created")
	}
}
