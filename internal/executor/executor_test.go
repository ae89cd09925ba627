package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream/upstreamtest"
)

// call captures one backend invocation.
type call struct {
	payload upstream.ExecutePayload
	timeout time.Duration
}

// funcBackend records calls and delegates the answer to fn.
type funcBackend struct {
	mu    sync.Mutex
	calls []call
	fn    func(p upstream.ExecutePayload) (upstream.ExecuteResponse, error)
}

func (b *funcBackend) Execute(_ context.Context, p upstream.ExecutePayload, timeout time.Duration) (upstream.ExecuteResponse, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call{payload: p, timeout: timeout})
	b.mu.Unlock()
	if b.fn == nil {
		return upstream.ExecuteResponse{Language: p.Language, Version: p.Version, Run: json.RawMessage(`{"stdout":"ok"}`)}, nil
	}
	return b.fn(p)
}

func (b *funcBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// memRecorder keeps records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []*model.ExecutionRecord
	err     error
}

func (r *memRecorder) RecordExecution(_ context.Context, rec *model.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func pythonRequest(stdin string) model.ExecutionRequest {
	return model.ExecutionRequest{
		Language: "python",
		Version:  "3.10.0",
		Files:    []model.File{{Name: "main.py", Content: "print(input())"}},
		Stdin:    stdin,
	}
}

func TestExecuteValidationMakesNoCall(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.ExecutionRequest)
	}{
		{"missing version", func(r *model.ExecutionRequest) { r.Version = "" }},
		{"missing language", func(r *model.ExecutionRequest) { r.Language = "" }},
		{"empty files", func(r *model.ExecutionRequest) { r.Files = []model.File{} }},
		{"file without content", func(r *model.ExecutionRequest) { r.Files[0].Content = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &funcBackend{}
			e := New(b, discardLogger())

			req := pythonRequest("")
			tt.mutate(&req)

			_, err := e.Execute(context.Background(), req)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Execute error = %v, want *model.ValidationError", err)
			}
			if b.callCount() != 0 {
				t.Errorf("backend calls = %d, want 0", b.callCount())
			}
		})
	}
}

func TestExecuteBuildsPayloadAndComposesTimeout(t *testing.T) {
	b := &funcBackend{}
	e := New(b, discardLogger())

	compile, run := 4000, 1000
	req := pythonRequest("in")
	req.CompileTimeoutMS = &compile
	req.RunTimeoutMS = &run

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Language != "python" || res.Version != "3.10.0" {
		t.Errorf("result language/version = %s/%s", res.Language, res.Version)
	}
	if string(res.Run) != `{"stdout":"ok"}` {
		t.Errorf("run = %s", res.Run)
	}
	if res.Compile != nil {
		t.Errorf("compile = %s, want absent", res.Compile)
	}

	got := b.calls[0]
	if got.timeout != 7*time.Second {
		t.Errorf("call timeout = %v, want 7s", got.timeout)
	}
	if got.payload.CompileTimeout != 4000 || got.payload.RunTimeout != 1000 {
		t.Errorf("payload timeouts = %d/%d", got.payload.CompileTimeout, got.payload.RunTimeout)
	}
	if got.payload.Args == nil || len(got.payload.Args) != 0 {
		t.Errorf("args = %#v, want empty slice", got.payload.Args)
	}
	if got.payload.Stdin != "in" {
		t.Errorf("stdin = %q", got.payload.Stdin)
	}
}

func TestExecuteDefaultTimeout(t *testing.T) {
	b := &funcBackend{}
	e := New(b, discardLogger())

	if _, err := e.Execute(context.Background(), pythonRequest("")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := b.calls[0].timeout; got != 15*time.Second {
		t.Errorf("call timeout = %v, want 15s (10s + 3s + 2s)", got)
	}
}

func TestExecuteLargestTimeoutIsMaxCallTimeout(t *testing.T) {
	b := &funcBackend{}
	e := New(b, discardLogger())

	req := pythonRequest("")
	limit := model.MaxPhaseTimeoutMS
	req.CompileTimeoutMS = &limit
	req.RunTimeoutMS = &limit
	if _, err := e.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := b.calls[0].timeout; got != MaxCallTimeout {
		t.Errorf("call timeout = %v, want %v", got, MaxCallTimeout)
	}

	over := limit + 1
	req.RunTimeoutMS = &over
	_, err := e.Execute(context.Background(), req)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Execute with oversized timeout = %v, want *model.ValidationError", err)
	}
	if b.callCount() != 1 {
		t.Errorf("calls = %d, want 1", b.callCount())
	}
}

func TestExecuteUnsupportedLanguageMessage(t *testing.T) {
	fake := upstreamtest.New()
	ts := upstreamtest.NewServer(fake)
	defer ts.Close()

	e := New(upstream.NewClient(ts.URL), discardLogger())

	req := pythonRequest("")
	req.Version = "0.0.1"
	_, err := e.Execute(context.Background(), req)

	var uerr *upstream.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("Execute error = %v, want *upstream.Error", err)
	}
	if uerr.Message != MessageUnsupported {
		t.Errorf("Message = %q, want %q", uerr.Message, MessageUnsupported)
	}
	if uerr.HTTPStatus() != http.StatusNotFound {
		t.Errorf("HTTPStatus() = %d, want 404", uerr.HTTPStatus())
	}
}

func TestExecuteTimeoutMessage(t *testing.T) {
	b := &funcBackend{fn: func(upstream.ExecutePayload) (upstream.ExecuteResponse, error) {
		return upstream.ExecuteResponse{}, upstream.Normalize(fmt.Errorf("post: %w", context.DeadlineExceeded))
	}}
	e := New(b, discardLogger())

	_, err := e.Execute(context.Background(), pythonRequest(""))

	var uerr *upstream.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("Execute error = %v, want *upstream.Error", err)
	}
	if uerr.Message != MessageTimeout {
		t.Errorf("Message = %q, want %q", uerr.Message, MessageTimeout)
	}
	if uerr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d, want 500", uerr.HTTPStatus())
	}
}

func TestExecuteUpstreamStatusMirrored(t *testing.T) {
	fake := upstreamtest.New()
	fake.HandleExecute(func(upstream.ExecutePayload) (int, any) {
		return http.StatusTooManyRequests, map[string]string{"message": "slow down"}
	})
	ts := upstreamtest.NewServer(fake)
	defer ts.Close()

	e := New(upstream.NewClient(ts.URL), discardLogger())
	_, err := e.Execute(context.Background(), pythonRequest(""))

	var uerr *upstream.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("Execute error = %v, want *upstream.Error", err)
	}
	if uerr.HTTPStatus() != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus() = %d, want 429", uerr.HTTPStatus())
	}
	if uerr.Message != "Execution backend error: 429 Too Many Requests" {
		t.Errorf("Message = %q", uerr.Message)
	}
}

func TestExecuteRecordsOutcome(t *testing.T) {
	rec := &memRecorder{}
	b := &funcBackend{}
	e := New(b, discardLogger(), WithRecorder(rec))

	if _, err := e.Execute(context.Background(), pythonRequest("")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	b.fn = func(upstream.ExecutePayload) (upstream.ExecuteResponse, error) {
		return upstream.ExecuteResponse{}, errors.New("boom")
	}
	if _, err := e.Execute(context.Background(), pythonRequest("")); err == nil {
		t.Fatal("Execute succeeded, want error")
	}

	if len(rec.records) != 2 {
		t.Fatalf("records = %d, want 2", len(rec.records))
	}
	if r := rec.records[0]; r.Status != model.StatusSucceeded || r.HTTPStatus != 200 || r.FileCount != 1 {
		t.Errorf("success record = %+v", r)
	}
	if r := rec.records[1]; r.Status != model.StatusFailed || r.Error != "boom" || r.HTTPStatus != 500 {
		t.Errorf("failure record = %+v", r)
	}
}

func TestExecuteRecorderFailureIsIgnored(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	e := New(&funcBackend{}, discardLogger(), WithRecorder(rec))

	if _, err := e.Execute(context.Background(), pythonRequest("")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
