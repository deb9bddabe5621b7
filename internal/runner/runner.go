// Package runner resolves execution-request names to the code that performs
// the work. Runners are registered once at startup; the registry is read-only
// afterwards from the engine's perspective.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taskgate/taskgate/internal/payload"
)

// Runner executes one decoded request.
type Runner interface {
	Run(ctx context.Context, req *payload.Request) (any, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, req *payload.Request) (any, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, req *payload.Request) (any, error) {
	return f(ctx, req)
}

// Registry holds registered runners keyed by request name.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
	}
}

// Register adds a runner under the given name, replacing any previous one.
func (r *Registry) Register(name string, rn Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[name] = rn
}

// Resolve returns the runner registered for name.
func (r *Registry) Resolve(name string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rn, ok := r.runners[name]
	if !ok {
		return nil, fmt.Errorf("no runner registered for %q", name)
	}
	return rn, nil
}

// List returns the registered names, sorted for a stable API response.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
