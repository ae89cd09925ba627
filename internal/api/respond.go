package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zohaib704-ai/Code-sphere/internal/catalog"
	"github.com/zohaib704-ai/Code-sphere/internal/executor"
	"github.com/zohaib704-ai/Code-sphere/internal/model"
	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

const maxBodySize = 1 << 20 // 1 MB

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: true, Message: message})
}

// writeFailure maps an error from the catalog or executor to a response.
// Anything that is neither a validation error nor a missing language goes
// through upstream.Normalize.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		s.writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Language not found")
		return
	}
	if errors.Is(err, executor.ErrDispatch) {
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	uerr := upstream.Normalize(err)
	s.writeJSON(w, uerr.HTTPStatus(), errorResponse{
		Error:   true,
		Message: uerr.Message,
		Details: uerr.Details,
	})
}

// decodeBody decodes a size-limited JSON body into v, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
