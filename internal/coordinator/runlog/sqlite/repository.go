// Package sqlite provides a SQLite-backed runlog.Repository.
//
// WAL mode is enabled on Open so the ops HTTP server can read run state while
// pipeline goroutines keep appending.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcmexdev/order-worker/internal/coordinator/runlog"

	// Pure-Go driver, no CGO.
	_ "modernc.org/sqlite"
)

// The table is append-only; the latest row per order_id is the current state.
const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    order_id    TEXT NOT NULL,
    customer_id TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    payload     TEXT,
    trace_id    TEXT NOT NULL DEFAULT '',
    span_id     TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_order_id ON pipeline_runs(order_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_trace_id ON pipeline_runs(trace_id);
`

// Repository is the SQLite implementation of runlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// The parent directory is created when missing.
//
//	repo, err := sqlite.Open("./data/runlog.db")
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *runlog.Entry) error {
	const q = `
		INSERT INTO pipeline_runs
			(run_id, order_id, customer_id, state, reason, payload, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.RunID,
		entry.OrderID,
		entry.CustomerID,
		entry.State,
		entry.Reason,
		nullableString(entry.Payload),
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save run entry for %q: %w", entry.OrderID, err)
	}
	return nil
}

// GetLatest returns the most recent entry for orderID across all runs.
func (r *Repository) GetLatest(ctx context.Context, orderID string) (*runlog.Entry, error) {
	const q = `
		SELECT run_id, order_id, customer_id, state, reason, COALESCE(payload, ''),
		       trace_id, span_id, updated_at
		FROM   pipeline_runs
		WHERE  order_id = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	var entry runlog.Entry
	var updatedAt string
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&entry.RunID,
		&entry.OrderID,
		&entry.CustomerID,
		&entry.State,
		&entry.Reason,
		&entry.Payload,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for order %q", runlog.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", orderID, err)
	}

	entry.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// nullableString stores NULL instead of '' for rows without a payload.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
