package engine

import (
	"log/slog"

	"github.com/taskgate/taskgate/internal/store"
)

type options struct {
	workerLimit int
	logger      *slog.Logger
	store       store.Store
}

// Option customizes engine construction.
type Option func(*options)

// WithWorkerLimit caps the number of concurrently running tasks. Values
// below one are ignored.
func WithWorkerLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workerLimit = n
		}
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore enables persistence of terminal task records, so task history
// survives in-memory pruning.
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}
