package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskgate/taskgate/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    mode        TEXT NOT NULL,
    status      TEXT NOT NULL,
    result      BLOB,
    error       TEXT,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

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

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTask upserts a task record. The engine writes each task once, at its
// terminal transition, but replays after a crash are harmless.
func (s *SQLiteStore) SaveTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tasks (
			id, name, mode, status, result, error,
			duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Mode, string(t.Status), t.Result, t.Error,
		t.DurationMS, t.CreatedAt, t.StartedAt, t.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task record by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, mode, status, result, error,
			duration_ms, created_at, started_at, finished_at
		FROM tasks WHERE id = ?`, id,
	).Scan(
		&t.ID, &t.Name, &t.Mode, &status, &t.Result, &t.Error,
		&t.DurationMS, &t.CreatedAt, &t.StartedAt, &t.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.Status = model.Status(status)
	return t, nil
}

// ListTasks returns a paginated list of task records ordered by created_at
// DESC, along with the total count.
func (s *SQLiteStore) ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, mode, status, result, error,
			duration_ms, created_at, started_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t := &model.Task{}
		var status string
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Mode, &status, &t.Result, &t.Error,
			&t.DurationMS, &t.CreatedAt, &t.StartedAt, &t.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		t.Status = model.Status(status)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTaskStats aggregates counts and average duration over the stored
// history.
func (s *SQLiteStore) GetTaskStats(ctx context.Context) (*TaskStats, error) {
	stats := &TaskStats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, mode, COUNT(*) FROM tasks GROUP BY status, mode")
	if err != nil {
		return nil, fmt.Errorf("aggregate tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, mode string
		var count int
		if err := rows.Scan(&status, &mode, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		stats.CountByStatus[status] += count
		stats.CountByMode[mode] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT AVG(duration_ms) FROM tasks").Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}
