package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
)

func testPackage() *model.EvidencePackage {
	return &model.EvidencePackage{
		RunID: "run-1",
		Mode:  model.ModeTriage,
		Findings: []model.ErrorFinding{{
			Category:        model.CategoryKernel,
			BaseSeverity:    model.ImpactCritical,
			MatchedEvidence: []string{"Kernel panic - not syncing", "Call Trace:"},
			MatchCount:      2,
		}},
		Assessment: model.ImpactAssessment{Level: model.ImpactCritical},
		Partial:    true,
	}
}

func TestPostsPackage(t *testing.T) {
	var got model.EvidencePackage
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := New(srv.URL)
	if err := out.Write(context.Background(), testPackage()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.RunID != "run-1" || !got.Partial || got.Assessment.Level != model.ImpactCritical {
		t.Errorf("received %+v", got)
	}
	if len(got.Findings[0].MatchedEvidence) != 2 {
		t.Error("default verbosity should send all evidence")
	}
}

func TestVerbosityTrims(t *testing.T) {
	var got model.EvidencePackage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	out := New(srv.URL, WithVerbosity(compactor.Minimal))
	if err := out.Write(context.Background(), testPackage()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if len(got.Findings[0].MatchedEvidence) != 1 {
		t.Errorf("expected 1 excerpt at Minimal, got %d", len(got.Findings[0].MatchedEvidence))
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL, WithRetries(3, 10*time.Millisecond))
	if err := out.Write(context.Background(), testPackage()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(400)
	}))
	defer srv.Close()

	out := New(srv.URL, WithRetries(3, 10*time.Millisecond))
	err := out.Write(context.Background(), testPackage())
	if err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", attempts.Load())
	}
}

func TestBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	out := New(srv.URL, WithToken("secret123"))
	if err := out.Write(context.Background(), testPackage()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if gotAuth != "Bearer secret123" {
		t.Errorf("Authorization = %q, want Bearer secret123", gotAuth)
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := New(srv.URL, WithRetries(5, time.Second))

	start := time.Now()
	if err := out.Write(ctx, testPackage()); err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("retries ignored cancellation: %s", time.Since(start))
	}
}
