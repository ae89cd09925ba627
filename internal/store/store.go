package store

import (
	"context"
	"errors"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
)

// ErrNotFound is returned when an execution record does not exist.
var ErrNotFound = errors.New("execution not found")

// ExecutionStats holds aggregate execution statistics.
type ExecutionStats struct {
	Total           int            `json:"total"`
	CountByStatus   map[string]int `json:"count_by_status"`
	CountByLanguage map[string]int `json:"count_by_language"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for execution history.
type Store interface {
	RecordExecution(ctx context.Context, rec *model.ExecutionRecord) error
	GetExecution(ctx context.Context, id string) (*model.ExecutionRecord, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*model.ExecutionRecord, int, error)
	GetExecutionStats(ctx context.Context) (*ExecutionStats, error)
	Close() error
}
