package multi

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crimson-sun/rca/internal/model"
)

// mockOutput records calls for test assertions.
type mockOutput struct {
	pkgs   []*model.EvidencePackage
	closed bool
	err    error // if set, Write returns this error
}

func (m *mockOutput) Write(_ context.Context, pkg *model.EvidencePackage) error {
	m.pkgs = append(m.pkgs, pkg)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func testPackage(id string, mode model.Mode) *model.EvidencePackage {
	return &model.EvidencePackage{RunID: id, Mode: mode}
}

func TestFanOutDeliversToAll(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	c := &mockOutput{}
	m := New(a, b, c)

	pkg := testPackage("run-1", model.ModeScan)
	if err := m.Write(context.Background(), pkg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockOutput{a, b, c} {
		if len(out.pkgs) != 1 {
			t.Errorf("output %d: got %d packages, want 1", i, len(out.pkgs))
		}
		if out.pkgs[0] != pkg {
			t.Errorf("output %d: got run %q, want %q", i, out.pkgs[0].RunID, pkg.RunID)
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockOutput{err: errors.New("disk full")}
	healthy := &mockOutput{}
	m := New(failing, healthy)

	pkg := testPackage("run-2", model.ModeBasic)
	err := m.Write(context.Background(), pkg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Healthy output still received the package despite earlier failure.
	if len(healthy.pkgs) != 1 {
		t.Fatalf("healthy output got %d packages, want 1", len(healthy.pkgs))
	}

	// Failing output also received the call (error returned after).
	if len(failing.pkgs) != 1 {
		t.Fatalf("failing output got %d packages, want 1", len(failing.pkgs))
	}
}

func TestCloseCallsAllOutputs(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	m := New(a, b)

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.closed || !b.closed {
		t.Errorf("Close not called on all outputs: a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	a := &mockOutput{err: errors.New("err-a")}
	b := &mockOutput{err: errors.New("err-b")}
	m := New(a, b)

	err := m.Close()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all outputs even when errors occur")
	}
}

func TestSingleOutputIdentity(t *testing.T) {
	inner := &mockOutput{}
	m := New(inner)

	pkg := testPackage("run-3", model.ModeQuick)
	if err := m.Write(context.Background(), pkg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inner.pkgs) != 1 || inner.pkgs[0].RunID != "run-3" {
		t.Error("single-output Multi did not behave identically to wrapped output")
	}
	if !inner.closed {
		t.Error("single-output Multi did not close inner output")
	}
}

func TestCancelledContextStopsDelivery(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	m := New(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Write(ctx, testPackage("run-4", model.ModeTriage))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(a.pkgs) != 0 || len(b.pkgs) != 0 {
		t.Errorf("sinks written after cancellation: a=%d b=%d", len(a.pkgs), len(b.pkgs))
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("Close must reach sinks that Write skipped")
	}
}

func TestNilPackageRejected(t *testing.T) {
	a := &mockOutput{}
	if err := New(a).Write(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil package")
	}
	if len(a.pkgs) != 0 {
		t.Error("nil package must not reach sinks")
	}
}

func TestNilSinksDropped(t *testing.T) {
	a := &mockOutput{}
	m := New(nil, a, nil)
	if m.Len() != 1 {
		t.Fatalf("got %d sinks, want 1", m.Len())
	}
	if err := m.Write(context.Background(), testPackage("run-5", model.ModeScan)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorNamesSink(t *testing.T) {
	m := New(&mockOutput{}, &mockOutput{err: errors.New("disk full")})
	err := m.Write(context.Background(), testPackage("run-6", model.ModeBasic))
	if err == nil || !strings.Contains(err.Error(), "sink 2") || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("got %v, want error naming sink 2", err)
	}
}
