package model

import "time"

// Info is the wire record describing a task, as returned by the engine's
// info call. Duration is in seconds and only present once the task has
// finished. Unknown extra fields are ignored by consumers.
type Info struct {
	Status   string   `json:"status"`
	Duration *float64 `json:"duration,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Task is the persisted record of a task, written to the store when the task
// reaches a terminal state so that history survives in-memory pruning.
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Mode       string     `json:"mode"`
	Status     Status     `json:"status"`
	Result     []byte     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Submission mode constants.
const (
	ModeRun      = "run"
	ModeAsync    = "async"
	ModeDeferred = "deferred"
)
