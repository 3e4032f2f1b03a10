package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var dest struct {
		Status string `json:"status"`
	}
	require.NoError(t, New(srv.URL, "").GetJSON(context.Background(), "/health", nil, &dest))
	assert.Equal(t, "ok", dest.Status)
}

func TestAuthHeader(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "secret-token-123").GetJSON(context.Background(), "/", nil, &struct{}{}))
	require.NoError(t, New(srv.URL, "").GetJSON(context.Background(), "/", nil, &struct{}{}))
	assert.Equal(t, []string{"Bearer secret-token-123", ""}, gotAuth)
}

func TestGetJSON_QueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	q := url.Values{"to": {"200"}, "from": {"100"}}
	require.NoError(t, New(srv.URL, "").GetJSON(context.Background(), "/logs", q, &struct{}{}))
	assert.Equal(t, "from=100&to=200", gotQuery)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "").GetJSON(context.Background(), "/bad", nil, &struct{}{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %T: %v", err, err)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, `{"error":"bad request"}`, apiErr.Body)
}

func TestRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(429)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var dest struct {
		OK bool `json:"ok"`
	}
	start := time.Now()
	require.NoError(t, New(srv.URL, "").GetJSON(context.Background(), "/", nil, &dest))
	assert.True(t, dest.OK)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(503)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithRetries(3, 10*time.Millisecond))
	var dest struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/", nil, &dest))
	assert.True(t, dest.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(srv.URL, "").GetJSON(ctx, "/", nil, &struct{}{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(502)
	}))
	defer srv.Close()

	err := New(srv.URL, "", WithRetries(2, time.Millisecond)).GetJSON(context.Background(), "/", nil, &struct{}{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostFile(t *testing.T) {
	var gotField, gotName, gotContent, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotFormat = r.FormValue("to_formats")
		f, hdr, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotField, gotName, gotContent = "files", hdr.Filename, string(b)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	var dest struct {
		Status string `json:"status"`
	}
	err := New(srv.URL, "").PostFile(context.Background(), "/v1/convert/file", "files", "report.pdf",
		[]byte("%PDF-1.7"), url.Values{"to_formats": {"text"}}, &dest)
	require.NoError(t, err)
	assert.Equal(t, "success", dest.Status)
	assert.Equal(t, "files", gotField)
	assert.Equal(t, "report.pdf", gotName)
	assert.Equal(t, "%PDF-1.7", gotContent)
	assert.Equal(t, "text", gotFormat)
}

func TestPostJSONNoDest(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").PostJSON(context.Background(), "/hook", map[string]string{"mode": "scan"}, nil))
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"mode":"scan"}`, string(gotBody))
}

func TestRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithRateLimit(10, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.GetJSON(context.Background(), "/", nil, &struct{}{}))
	}
	// burst 1 at 10 rps: the 2nd and 3rd calls wait ~100ms each.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}
