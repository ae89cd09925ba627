package model

import "time"

// Execution record status constants.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ExecutionRecord is the persisted summary of one execution. It never holds
// source code, stdin or program output.
type ExecutionRecord struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id,omitempty"`
	BatchIndex *int      `json:"batch_index,omitempty"`
	Language   string    `json:"language"`
	Version    string    `json:"version"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	HTTPStatus int       `json:"http_status"`
	FileCount  int       `json:"file_count"`
	DurationMS int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
