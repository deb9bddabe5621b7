package fault

import "strings"

// TaskIDLength is the exact width of a task identifier embedded in engine
// error messages. Engine messages implicating a task follow the convention
// "task <id>: <reason>" with a fixed-width id.
const TaskIDLength = 20

// taskPrefix precedes the embedded id.
const taskPrefix = "task "

// rules maps fixed substrings of engine messages to failure categories.
// Evaluated in order; the first match wins, so the ordering is part of the
// contract. Messages matching nothing classify as Generic.
//
// This is deliberately substring matching on human-readable text: a change in
// the engine's wording silently turns a failure Generic. Kept data-driven so
// the vocabulary can be updated in one place.
var rules = []struct {
	substr   string
	category Category
}{
	{"task timed out", Timeout},
	{"task not found", NotFound},
	{"task canceled", Canceled},
	{"task panicked", Panic},
	{"task failed", Failed},
}

// Classify maps a raw engine error message to a TaskError, extracting the
// embedded task id when the message follows the "task <id>: <reason>"
// convention. A malformed or missing id skips extraction; it never fails.
func Classify(msg string) *TaskError {
	te := &TaskError{
		Category: Generic,
		Message:  msg,
	}

	// The colon must sit exactly TaskIDLength past the prefix for the id to
	// be trusted.
	colon := len(taskPrefix) + TaskIDLength
	if strings.HasPrefix(msg, taskPrefix) && len(msg) > colon+1 && msg[colon] == ':' {
		te.TaskID = msg[len(taskPrefix):colon]
	}

	for _, r := range rules {
		if strings.Contains(msg, r.substr) {
			te.Category = r.category
			break
		}
	}

	return te
}
