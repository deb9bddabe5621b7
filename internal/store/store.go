package store

import (
	"context"
	"errors"

	"github.com/taskgate/taskgate/internal/model"
)

// ErrNotFound is returned when a task record is not in the store.
var ErrNotFound = errors.New("task record not found")

// TaskStats holds aggregate statistics over persisted task history.
type TaskStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for terminal task records.
type Store interface {
	SaveTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error)
	GetTaskStats(ctx context.Context) (*TaskStats, error)
	Close() error
}
