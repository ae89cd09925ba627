package executor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

// timeoutBuffer is added to the compile and run budgets so the gateway always
// waits longer than it allowed the backend to run.
const timeoutBuffer = 2 * time.Second

// MaxCallTimeout is the longest a single execution can wait on the backend.
const MaxCallTimeout = 2*model.MaxPhaseTimeout + timeoutBuffer

// Caller-facing messages replacing the generic normalized one.
const (
	MessageTimeout     = "Execution timeout - code took too long to execute"
	MessageUnsupported = "Language or version not supported"
)

// Backend runs one program remotely.
type Backend interface {
	Execute(ctx context.Context, payload upstream.ExecutePayload, timeout time.Duration) (upstream.ExecuteResponse, error)
}

// Recorder persists execution summaries.
type Recorder interface {
	RecordExecution(ctx context.Context, rec *model.ExecutionRecord) error
}

// Executor orchestrates single and batch executions. It keeps no state
// between calls.
type Executor struct {
	backend  Backend
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithRecorder stores a summary of every execution in r.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

// New creates an Executor forwarding to b.
func New(b Backend, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		backend: b,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates req and runs it. Validation failures return a
// *model.ValidationError without calling the backend; backend failures
// return an *upstream.Error.
func (e *Executor) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	compile, run := req.CompileTimeout(), req.RunTimeout()
	payload := buildPayload(req, compile, run)

	start := e.now()
	resp, err := e.backend.Execute(ctx, payload, compile+run+timeoutBuffer)
	if err != nil {
		uerr := singleError(err)
		e.logger.Warn("execution failed",
			"language", req.Language,
			"version", req.Version,
			"kind", uerr.Kind,
			"error", uerr,
		)
		e.record(ctx, newRecord(req, start, e.now(), uerr.HTTPStatus(), uerr.Message))
		return nil, uerr
	}

	e.record(ctx, newRecord(req, start, e.now(), http.StatusOK, ""))
	return &model.ExecutionResult{
		Language: req.Language,
		Version:  req.Version,
		Run:      resp.Run,
		Compile:  resp.Compile,
	}, nil
}

// singleError normalizes err and swaps in the timeout or unsupported-runtime
// message where one applies.
func singleError(err error) *upstream.Error {
	uerr := upstream.Normalize(err)
	switch {
	case uerr.Timeout:
		return uerr.WithMessage(MessageTimeout)
	case uerr.Kind == upstream.KindUpstream && uerr.Status == http.StatusNotFound:
		return uerr.WithMessage(MessageUnsupported)
	}
	return uerr
}

func buildPayload(req model.ExecutionRequest, compile, run time.Duration) upstream.ExecutePayload {
	args := req.Args
	if args == nil {
		args = []string{}
	}
	return upstream.ExecutePayload{
		Language:       req.Language,
		Version:        req.Version,
		Files:          req.Files,
		Stdin:          req.Stdin,
		Args:           args,
		CompileTimeout: compile.Milliseconds(),
		RunTimeout:     run.Milliseconds(),
	}
}

// newRecord summarizes one execution. An empty errMsg means success.
func newRecord(req model.ExecutionRequest, start, end time.Time, httpStatus int, errMsg string) *model.ExecutionRecord {
	rec := &model.ExecutionRecord{
		ID:         model.NewID(),
		Language:   req.Language,
		Version:    req.Version,
		Status:     model.StatusSucceeded,
		HTTPStatus: httpStatus,
		FileCount:  len(req.Files),
		DurationMS: int(end.Sub(start).Milliseconds()),
		CreatedAt:  start.UTC(),
	}
	if errMsg != "" {
		rec.Status = model.StatusFailed
		rec.Error = errMsg
	}
	return rec
}

// record stores rec when a Recorder is configured. Failures are only logged.
func (e *Executor) record(ctx context.Context, rec *model.ExecutionRecord) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordExecution(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Error("record execution", "execution_id", rec.ID, "error", err)
	}
}
