// Package history keeps a write-side audit journal of task runs. The journal
// is observability only: the engine never reads it back, and it is not a
// recovery log -- scheduled state is still lost when the process dies.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one journal entry: a task admission, completion, or cancellation.
type Run struct {
	Name        string
	ProgramPath string
	Parameters  []string
	ScheduledAt int64 // Epoch milliseconds
	Outcome     string
	RecordedAt  time.Time
}

// Store defines the journal persistence interface.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, taskName string) ([]*Run, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed journal at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The recorder is the only writer; one connection avoids SQLITE_BUSY
	// contention between pooled connections.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewMemoryStore creates an in-memory SQLite journal for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	// A single pooled connection keeps the shared in-memory database alive
	// between queries.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the journal table if it doesn't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		program_path TEXT NOT NULL,
		parameters TEXT,
		scheduled_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_task_runs_name ON task_runs(name, id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordRun appends one journal entry.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (name, program_path, parameters, scheduled_at, outcome)
		VALUES (?, ?, ?, ?, ?)
	`, run.Name, run.ProgramPath, strings.Join(run.Parameters, "\x1f"), run.ScheduledAt, run.Outcome)
	if err != nil {
		return fmt.Errorf("failed to insert run for %q: %w", run.Name, err)
	}
	return nil
}

// ListRuns returns journal entries, oldest first. An empty taskName returns
// every entry.
func (s *SQLiteStore) ListRuns(ctx context.Context, taskName string) ([]*Run, error) {
	query := `SELECT name, program_path, parameters, scheduled_at, outcome, recorded_at
		FROM task_runs`
	args := []any{}
	if taskName != "" {
		query += ` WHERE name = ?`
		args = append(args, taskName)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var params string
		if err := rows.Scan(&run.Name, &run.ProgramPath, &params, &run.ScheduledAt, &run.Outcome, &run.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if params != "" {
			run.Parameters = strings.Split(params, "\x1f")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
