package model

import "strings"

// Status is the lifecycle state of a task as reported by the engine.
type Status string

// Task status values. These are the wire strings; comparison on decode is
// case-insensitive.
const (
	StatusDeferred  Status = "deferred"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"

	// StatusUnknown is a client-side decode fallback, never a state the
	// engine reports for a live task.
	StatusUnknown Status = "unknown"
)

// maxStatusLen bounds the accepted wire value. Anything longer cannot be a
// valid status and parses to unknown rather than being truncated.
const maxStatusLen = 32

// ParseStatus maps a wire value to a Status. Unrecognized, missing, or
// oversized values degrade to StatusUnknown.
func ParseStatus(s string) Status {
	if len(s) > maxStatusLen {
		return StatusUnknown
	}
	switch strings.ToLower(s) {
	case "deferred":
		return StatusDeferred
	case "pending":
		return StatusPending
	case "running":
		return StatusRunning
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "canceled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// String returns the wire representation.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transitions occur from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// validTransitions maps each status to the set of statuses it may move to.
var validTransitions = map[Status]map[Status]bool{
	StatusDeferred: {
		StatusPending:  true,
		StatusRunning:  true,
		StatusCanceled: true,
	},
	StatusPending: {
		StatusRunning:  true,
		StatusFailed:   true,
		StatusCanceled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCanceled:  true,
	},
}

// ValidTransition reports whether moving from one status to another is allowed.
func ValidTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
