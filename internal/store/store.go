// internal/store/store.go

// Package store persists workflow run history to PostgreSQL. The sink is
// optional equipment: workflows run fine without a DSN, and callers treat a
// failed write as a log line, never as a failed run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/automation"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

const (
	createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS workflow_runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    step_count INT NOT NULL,
    succeeded BOOLEAN NOT NULL
)`

	createStepResultsTableSQL = `
CREATE TABLE IF NOT EXISTS step_results (
    run_id TEXT NOT NULL REFERENCES workflow_runs(id) ON DELETE CASCADE,
    position INT NOT NULL,
    step_id TEXT NOT NULL,
    step_name TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    attempts INT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    PRIMARY KEY (run_id, position)
)`

	insertRunSQL = `
INSERT INTO workflow_runs (id, started_at, duration_ms, step_count, succeeded)
VALUES ($1, $2, $3, $4, $5)`

	selectRecentRunsSQL = `
SELECT id, started_at, duration_ms, step_count, succeeded
FROM workflow_runs
ORDER BY started_at DESC
LIMIT $1`
)

var stepResultColumns = []string{
	"run_id", "position", "step_id", "step_name", "status",
	"error", "started_at", "duration_ms", "attempts", "data",
}

// Store writes workflow reports into the run-history tables.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New wraps an existing pool after verifying the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// Connect opens a pool for dsn and wraps it.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the run-history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createRunsTableSQL, createStepResultsTableSQL} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure history schema: %w", err)
		}
	}
	return nil
}

// SaveReport writes one workflow report and all its step results in a
// single transaction.
func (s *Store) SaveReport(ctx context.Context, report automation.WorkflowReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is
		// the normal path, not a failure.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	_, err = tx.Exec(ctx, insertRunSQL,
		report.WorkflowID,
		report.StartedAt.UTC(),
		report.Duration.Milliseconds(),
		len(report.Results),
		report.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow run: %w", err)
	}

	if len(report.Results) > 0 {
		rows := make([][]any, len(report.Results))
		for i, r := range report.Results {
			data, err := encodeResultData(r.Data)
			if err != nil {
				return fmt.Errorf("step %q: %w", r.StepID, err)
			}
			rows[i] = []any{
				report.WorkflowID, i, r.StepID, r.StepName, string(r.Status),
				r.ErrorMessage(), r.StartedAt.UTC(), r.Duration.Milliseconds(), r.Attempts, data,
			}
		}

		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"step_results"}, stepResultColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy step results: %w", err)
		}
		if int(copied) != len(report.Results) {
			return fmt.Errorf("mismatch in copied step results: expected %d, got %d", len(report.Results), copied)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunRecord is one persisted workflow run.
type RunRecord struct {
	WorkflowID string
	StartedAt  time.Time
	Duration   time.Duration
	StepCount  int
	Succeeded  bool
}

// RecentRuns returns the newest runs first, capped at limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, selectRecentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var durationMs int64
		if err := rows.Scan(&r.WorkflowID, &r.StartedAt, &durationMs, &r.StepCount, &r.Succeeded); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// encodeResultData renders collected step data as a JSON object. Image
// artifacts live in the run context, not the database; only their
// dimensions are persisted.
func encodeResultData(data map[string]any) (json.RawMessage, error) {
	if len(data) == 0 {
		return json.RawMessage("{}"), nil
	}
	clean := make(map[string]any, len(data))
	for k, v := range data {
		if img, ok := v.(image.Image); ok {
			b := img.Bounds()
			clean[k] = fmt.Sprintf("image %dx%d", b.Dx(), b.Dy())
			continue
		}
		clean[k] = v
	}
	encoded, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encoding step data: %w", err)
	}
	return encoded, nil
}
