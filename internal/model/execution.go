package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Default per-phase timeouts in milliseconds, applied when a request omits them.
const (
	DefaultCompileTimeoutMS = 10000
	DefaultRunTimeoutMS     = 3000
)

// MaxPhaseTimeoutMS is the largest compile or run timeout a caller may request.
const MaxPhaseTimeoutMS = 60000

// MaxPhaseTimeout is MaxPhaseTimeoutMS as a duration.
const MaxPhaseTimeout = MaxPhaseTimeoutMS * time.Millisecond

// File is a single source file submitted for execution.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExecutionRequest is the inbound body of a single execution, and one item of a batch.
type ExecutionRequest struct {
	Language         string   `json:"language"`
	Version          string   `json:"version"`
	Files            []File   `json:"files"`
	Stdin            string   `json:"stdin"`
	Args             []string `json:"args"`
	CompileTimeoutMS *int     `json:"compile_timeout,omitempty"`
	RunTimeoutMS     *int     `json:"run_timeout,omitempty"`
}

// Validate checks the required fields. It performs no I/O.
func (r *ExecutionRequest) Validate() error {
	if r.Language == "" || r.Version == "" || r.Files == nil {
		return &ValidationError{Message: "Missing required fields: language, version, files"}
	}
	if len(r.Files) == 0 {
		return &ValidationError{Message: "Files array must contain at least one file"}
	}
	for _, f := range r.Files {
		if f.Name == "" || f.Content == "" {
			return &ValidationError{Message: "Each file must have name and content"}
		}
	}
	if tooLong(r.CompileTimeoutMS) || tooLong(r.RunTimeoutMS) {
		return &ValidationError{Message: fmt.Sprintf("compile_timeout and run_timeout must not exceed %d ms", MaxPhaseTimeoutMS)}
	}
	return nil
}

// CompileTimeout returns the requested compile timeout or the default.
func (r *ExecutionRequest) CompileTimeout() time.Duration {
	return msOrDefault(r.CompileTimeoutMS, DefaultCompileTimeoutMS)
}

// RunTimeout returns the requested run timeout or the default.
func (r *ExecutionRequest) RunTimeout() time.Duration {
	return msOrDefault(r.RunTimeoutMS, DefaultRunTimeoutMS)
}

func tooLong(v *int) bool {
	return v != nil && *v > MaxPhaseTimeoutMS
}

// msOrDefault never exceeds MaxPhaseTimeout, even for requests that skipped Validate.
func msOrDefault(v *int, def int) time.Duration {
	if v != nil && *v > 0 {
		return time.Duration(min(*v, MaxPhaseTimeoutMS)) * time.Millisecond
	}
	return time.Duration(def) * time.Millisecond
}

// ExecutionResult is the outcome of one execution. Run and Compile are the
// backend's stage outputs, untouched; either may be absent.
type ExecutionResult struct {
	Language string          `json:"language"`
	Version  string          `json:"version"`
	Run      json.RawMessage `json:"run,omitempty"`
	Compile  json.RawMessage `json:"compile,omitempty"`
}

// BatchItemResult reports the outcome of one batch item at its input position.
// A failed item carries only Error.
type BatchItemResult struct {
	Index    int             `json:"index"`
	Success  bool            `json:"success"`
	Language string          `json:"language,omitempty"`
	Version  string          `json:"version,omitempty"`
	Run      json.RawMessage `json:"run,omitempty"`
	Compile  json.RawMessage `json:"compile,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ValidationError reports malformed caller input. It is always detected
// before any backend call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
