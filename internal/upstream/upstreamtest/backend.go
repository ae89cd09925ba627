// Package upstreamtest provides an in-memory execution backend that speaks
// the same HTTP API as the real one. It counts calls so callers can assert
// exactly when the gateway reached the backend.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

// DefaultLanguages is the catalog a new Backend serves.
var DefaultLanguages = []model.Language{
	{Language: "python", Version: "3.10.0", Aliases: []string{"py", "py3", "python3"}},
	{Language: "javascript", Version: "18.15.0", Aliases: []string{"node-javascript", "node-js", "javascript", "js"}, Runtime: "node"},
	{Language: "go", Version: "1.16.2", Aliases: []string{"go", "golang"}},
	{Language: "c++", Version: "10.2.0", Aliases: []string{"cpp", "g++"}, Runtime: "gcc"},
}

var compiled = map[string]bool{"go": true, "c++": true, "c": true, "rust": true, "java": true}

// ExecuteFunc computes a status and JSON body for one execute request.
type ExecuteFunc func(p upstream.ExecutePayload) (int, any)

// Backend is a fake execution backend.
type Backend struct {
	mu             sync.Mutex
	languages      []model.Language
	runtimesStatus int
	token          string
	delay          time.Duration
	executeFunc    ExecuteFunc
	received       []upstream.ExecutePayload

	runtimesCalls atomic.Int64
	executeCalls  atomic.Int64
}

// New returns a Backend serving DefaultLanguages.
func New() *Backend {
	langs := make([]model.Language, len(DefaultLanguages))
	copy(langs, DefaultLanguages)
	return &Backend{languages: langs}
}

// NewServer starts an httptest server in front of b. The caller closes it.
func NewServer(b *Backend) *httptest.Server {
	return httptest.NewServer(b.Handler())
}

// SetLanguages replaces the served catalog.
func (b *Backend) SetLanguages(langs []model.Language) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.languages = langs
}

// FailRuntimes makes GET /runtimes answer with status. Zero restores success.
func (b *Backend) FailRuntimes(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtimesStatus = status
}

// RequireToken rejects calls that do not carry token as a bearer credential.
func (b *Backend) RequireToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// SetDelay holds every execute response for d, or until the caller gives up.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// HandleExecute overrides the default execute behaviour.
func (b *Backend) HandleExecute(fn ExecuteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executeFunc = fn
}

// RuntimesCalls reports how many GET /runtimes calls were received.
func (b *Backend) RuntimesCalls() int64 {
	return b.runtimesCalls.Load()
}

// ExecuteCalls reports how many POST /execute calls were received.
func (b *Backend) ExecuteCalls() int64 {
	return b.executeCalls.Load()
}

// Received returns the decoded execute payloads in arrival order.
func (b *Backend) Received() []upstream.ExecutePayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]upstream.ExecutePayload, len(b.received))
	copy(out, b.received)
	return out
}

// Handler returns the backend's HTTP API.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.authorize)
	r.Get("/runtimes", b.handleRuntimes)
	r.Post("/execute", b.handleExecute)
	return r
}

func (b *Backend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		token := b.token
		b.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleRuntimes(w http.ResponseWriter, _ *http.Request) {
	b.runtimesCalls.Add(1)

	b.mu.Lock()
	status := b.runtimesStatus
	langs := b.languages
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "runtimes unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, langs)
}

func (b *Backend) handleExecute(w http.ResponseWriter, r *http.Request) {
	b.executeCalls.Add(1)

	var p upstream.ExecutePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	b.mu.Lock()
	b.received = append(b.received, p)
	delay := b.delay
	fn := b.executeFunc
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if fn == nil {
		fn = b.defaultExecute
	}
	status, body := fn(p)
	writeJSON(w, status, body)
}

// defaultExecute echoes stdin as the program's output.
func (b *Backend) defaultExecute(p upstream.ExecutePayload) (int, any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, l := range b.languages {
		if l.Matches(p.Language) && l.Version == p.Version {
			resp := map[string]any{
				"language": l.Language,
				"version":  l.Version,
				"run":      StageOutput(p.Stdin, 0),
			}
			if compiled[l.Language] {
				resp["compile"] = StageOutput("", 0)
			}
			return http.StatusOK, resp
		}
	}
	return http.StatusNotFound, map[string]string{
		"message": fmt.Sprintf("%s-%s runtime is unknown", p.Language, p.Version),
	}
}

// StageOutput builds a backend run or compile result.
func StageOutput(stdout string, code int) map[string]any {
	return map[string]any{
		"stdout": stdout,
		"stderr": "",
		"code":   code,
		"signal": nil,
		"output": stdout,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
