package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
)

const (
	// RuntimesTimeout bounds a catalog fetch.
	RuntimesTimeout = 5 * time.Second

	maxErrorBody = 64 << 10
)

// Client talks to the execution backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a backend client for baseURL. Timeouts are applied per
// call, so the underlying http.Client has none of its own.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecutePayload is the body of POST /execute.
type ExecutePayload struct {
	Language       string       `json:"language"`
	Version        string       `json:"version"`
	Files          []model.File `json:"files"`
	Stdin          string       `json:"stdin"`
	Args           []string     `json:"args"`
	CompileTimeout int64        `json:"compile_timeout"`
	RunTimeout     int64        `json:"run_timeout"`
}

// ExecuteResponse is the backend's answer to POST /execute. Run and Compile
// are kept raw.
type ExecuteResponse struct {
	Language string          `json:"language"`
	Version  string          `json:"version"`
	Run      json.RawMessage `json:"run,omitempty"`
	Compile  json.RawMessage `json:"compile,omitempty"`
}

// Runtimes fetches the language catalog with GET /runtimes.
func (c *Client) Runtimes(ctx context.Context) ([]model.Language, error) {
	var out []model.Language
	if err := c.call(ctx, endpointRuntimes, http.MethodGet, "/runtimes", nil, RuntimesTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute runs one program with POST /execute. The call is abandoned after
// timeout regardless of the caller's context.
func (c *Client) Execute(ctx context.Context, payload ExecutePayload, timeout time.Duration) (ExecuteResponse, error) {
	var out ExecuteResponse
	if err := c.call(ctx, endpointExecute, http.MethodPost, "/execute", payload, timeout, &out); err != nil {
		return ExecuteResponse{}, err
	}
	return out, nil
}

// call wraps roundTrip with metrics. A nil *Error is returned as a nil error.
func (c *Client) call(ctx context.Context, endpoint, method, path string, body any, timeout time.Duration, out any) error {
	start := time.Now()
	uerr := c.roundTrip(ctx, method, path, body, timeout, out)
	observe(endpoint, uerr, time.Since(start).Seconds())
	if uerr != nil {
		return uerr
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, timeout time.Duration, out any) *Error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return newRequestSetupError(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	// Detached from the inbound request: only the call's own timeout ends it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newRequestSetupError(fmt.Errorf("create request: %w", err))
	}
	if err := checkTarget(req.URL); err != nil {
		return newRequestSetupError(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	desc := RequestDescriptor{
		Method:    method,
		URL:       req.URL.String(),
		TimeoutMS: timeout.Milliseconds(),
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newNoResponseError(desc, err, errors.Is(ctx.Err(), context.DeadlineExceeded))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newUpstreamError(resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newNoResponseError(desc, err, true)
		}
		return newInvalidResponseError(resp.StatusCode, err)
	}
	return nil
}

// ValidateBaseURL reports whether raw can serve as the backend base URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend URL: %w", err)
	}
	return checkTarget(u)
}

// checkTarget rejects URLs the transport could never send, so they surface as
// setup errors rather than as a missing response.
func checkTarget(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend URL %q: unsupported scheme %q", u.Redacted(), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend URL %q: missing host", u.Redacted())
	}
	return nil
}
