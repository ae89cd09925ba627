package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call.
type Kind string

const (
	// KindUpstream means the backend answered with a non-2xx status.
	KindUpstream Kind = "upstream"
	// KindNoResponse means the request was sent but no response arrived.
	KindNoResponse Kind = "no_response"
	// KindRequestSetup means the request could not be built or sent.
	KindRequestSetup Kind = "request_setup"
)

const noResponseMessage = "No response from execution backend. Please try again later."

// RequestDescriptor identifies an outbound call. It never carries the body.
type RequestDescriptor struct {
	Method    string `json:"method"`
	URL       string `json:"url"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// Error is the normalized form of every backend call failure.
type Error struct {
	Kind    Kind
	Status  int    // backend status, KindUpstream only
	Message string // safe to show to API callers
	Details any    // backend payload (KindUpstream) or *RequestDescriptor (KindNoResponse)
	Timeout bool   // the gateway gave up waiting, KindNoResponse only
	Err     error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying transport or encoding error.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status the gateway answers with: the backend's own status
// when it responded, 500 otherwise.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindUpstream && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// WithMessage returns a copy of e with a different caller-facing message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Normalize maps any error to exactly one Kind. An *Error already in the
// chain is returned unchanged; timeouts become KindNoResponse; anything else
// is treated as a request that could not be set up.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	if isTimeout(err) {
		return &Error{Kind: KindNoResponse, Message: noResponseMessage, Timeout: true, Err: err}
	}
	return newRequestSetupError(err)
}

func newUpstreamError(status int, body []byte) *Error {
	return &Error{
		Kind:    KindUpstream,
		Status:  status,
		Message: fmt.Sprintf("Execution backend error: %d %s", status, http.StatusText(status)),
		Details: decodeDetails(body),
	}
}

// newInvalidResponseError covers a 2xx answer whose body could not be decoded.
// The backend did respond, so it is reported as an upstream failure.
func newInvalidResponseError(status int, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("Execution backend returned an unreadable response (status %d)", status),
		Err:     err,
	}
}

func newNoResponseError(desc RequestDescriptor, err error, timedOut bool) *Error {
	return &Error{
		Kind:    KindNoResponse,
		Message: noResponseMessage,
		Details: &desc,
		Timeout: timedOut || isTimeout(err),
		Err:     err,
	}
}

func newRequestSetupError(err error) *Error {
	return &Error{
		Kind:    KindRequestSetup,
		Message: err.Error(),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decodeDetails keeps a JSON body as raw JSON and anything else as text.
func decodeDetails(body []byte) any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return trimmed
}
