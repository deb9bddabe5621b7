// Package fault defines the error taxonomy shared by the task-handle layer:
// local validation errors raised before any engine call, and the classified
// family of engine failures derived from free-text engine messages.
package fault

import "errors"

// Local errors. These are detected on the caller side and never reach the
// engine.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrEncodingFailed  = errors.New("encoding failed")
	ErrDecodingFailed  = errors.New("decoding failed")
	ErrInvalidState    = errors.New("invalid state")
)

// Category is the typed failure class of a classified engine error.
type Category int

const (
	Generic Category = iota
	Timeout
	Failed
	NotFound
	Canceled
	Panic
)

// String returns a stable name for the category.
func (c Category) String() string {
	switch c {
	case Timeout:
		return "timeout"
	case Failed:
		return "failed"
	case NotFound:
		return "not_found"
	case Canceled:
		return "canceled"
	case Panic:
		return "panic"
	default:
		return "generic"
	}
}

// TaskError is an engine failure with a category attached and, when the
// message implicates a specific task, the extracted task id.
type TaskError struct {
	Category Category
	TaskID   string
	Message  string
}

// Error returns the original engine message unchanged.
func (e *TaskError) Error() string {
	return e.Message
}

// AsTask unwraps err into a *TaskError if it is (or wraps) one.
func AsTask(err error) (*TaskError, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
