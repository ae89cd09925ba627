package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zohaib704-ai/Code-sphere/internal/catalog"
	"github.com/zohaib704-ai/Code-sphere/internal/executor"
	"github.com/zohaib704-ai/Code-sphere/internal/ratelimit"
	"github.com/zohaib704-ai/Code-sphere/internal/store"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream/upstreamtest"
)

// newTestServer wires a Server to a fake backend and an in-memory store.
func newTestServer(t *testing.T, opts ...Option) (*Server, *upstreamtest.Backend) {
	t.Helper()

	backend := upstreamtest.New()
	bts := upstreamtest.NewServer(backend)
	t.Cleanup(bts.Close)

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client := upstream.NewClient(bts.URL)
	cat := catalog.New(client, logger)
	exec := executor.New(client, logger, executor.WithRecorder(s))

	opts = append([]Option{WithStore(s)}, opts...)
	return NewServer(":0", cat, exec, logger, opts...), backend
}

// postJSON posts v as JSON and returns the response.
func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// decodeError reads an error body and checks its shape.
func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !body.Error {
		t.Errorf("error = false, want true")
	}
	return body
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPanicRecovery(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/api/languages", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /api/languages: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestUnknownAPIRouteReturnsJSON404(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	decodeError(t, resp)
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimiter(ratelimit.NewMemoryLimiter(1, time.Minute)))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("request %d: status = %d, want %d", i+1, resp.StatusCode, want)
		}
		if resp.Header.Get("X-RateLimit-Limit") != "1" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want 1", i+1, resp.Header.Get("X-RateLimit-Limit"))
		}
	}

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestStaticDirServesUI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>codesphere</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	srv, _ := newTestServer(t, WithStaticDir(dir))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "codesphere") {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestHandlerIsTraced(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWriteTimeoutOutlastsLongestExecution(t *testing.T) {
	srv, _ := newTestServer(t)

	hs := srv.newHTTPServer()
	if hs.WriteTimeout <= executor.MaxCallTimeout {
		t.Errorf("WriteTimeout = %v, want more than %v", hs.WriteTimeout, executor.MaxCallTimeout)
	}
}
