package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zohaib704-ai/Code-sphere/internal/model"

	_ "modernc.org/sqlite"
)

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id          TEXT PRIMARY KEY,
    batch_id    TEXT,
    batch_index INTEGER,
    language    TEXT NOT NULL,
    version     TEXT NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT,
    http_status INTEGER NOT NULL,
    file_count  INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL
)`

const createExecutionsIndex = `
CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions (created_at DESC)`

const selectExecutionColumns = `SELECT id, batch_id, batch_index, language, version, status,
	error, http_status, file_count, duration_ms, created_at FROM executions`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite has a single writer, and every ":memory:"
	// connection would otherwise be a separate empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createExecutionsTable, createExecutionsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate executions: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordExecution inserts a new execution record.
func (s *SQLiteStore) RecordExecution(ctx context.Context, r *model.ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (
			id, batch_id, batch_index, language, version, status,
			error, http_status, file_count, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullString(r.BatchID), r.BatchIndex, r.Language, r.Version, r.Status,
		nullString(r.Error), r.HTTPStatus, r.FileCount, r.DurationMS, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution record by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	r, err := scanExecution(s.db.QueryRowContext(ctx, selectExecutionColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return r, nil
}

// ListExecutions returns a page of execution records, newest first, along
// with the total count of all records.
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit, offset int) ([]*model.ExecutionRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		selectExecutionColumns+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var records []*model.ExecutionRecord
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate executions: %w", err)
	}

	return records, total, nil
}

// GetExecutionStats aggregates counts by status and language and the mean duration.
func (s *SQLiteStore) GetExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	stats := &ExecutionStats{
		CountByStatus:   make(map[string]int),
		CountByLanguage: make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM executions",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	if err := s.countBy(ctx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "language", stats.CountByLanguage); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills dst with row counts grouped by column. column is never user input.
func (s *SQLiteStore) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, COUNT(*) FROM executions GROUP BY %s", column, column),
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*model.ExecutionRecord, error) {
	r := &model.ExecutionRecord{}
	var batchID, errMsg sql.NullString
	var batchIndex sql.NullInt64
	if err := row.Scan(
		&r.ID, &batchID, &batchIndex, &r.Language, &r.Version, &r.Status,
		&errMsg, &r.HTTPStatus, &r.FileCount, &r.DurationMS, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.BatchID = batchID.String
	r.Error = errMsg.String
	if batchIndex.Valid {
		idx := int(batchIndex.Int64)
		r.BatchIndex = &idx
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
