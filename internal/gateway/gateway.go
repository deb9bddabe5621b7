// Package gateway is the narrow synchronous boundary between the task-handle
// layer and the engine. Serialized payloads go in; serialized results or
// free-text errors come out. Error text follows the "task <id>: <reason>"
// convention that the caller-side classifier depends on.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskgate/taskgate/internal/engine"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/payload"
	"github.com/taskgate/taskgate/internal/runner"
	"github.com/taskgate/taskgate/internal/timeout"
)

// Caller is the surface the handle layer consumes. A nil byte slice with a
// nil error is a valid "no data" outcome, not a failure.
type Caller interface {
	Submit(ctx context.Context, body []byte) (string, error)
	SubmitAsync(ctx context.Context, body []byte) (string, error)
	SubmitDeferred(ctx context.Context, body []byte) (string, error)
	Await(ctx context.Context, id string, budget time.Duration) ([]byte, error)
	AwaitAll(ctx context.Context, ids []string, budget time.Duration) ([]byte, error)
	AwaitAny(ctx context.Context, ids []string, budget time.Duration) ([]byte, error)
	Cancel(ctx context.Context, id string) error
	Info(ctx context.Context, id string) ([]byte, error)
}

// Compile-time interface satisfaction check.
var _ Caller = (*Local)(nil)

// Local implements Caller over an in-process engine and runner registry.
type Local struct {
	engine   *engine.Engine
	registry *runner.Registry
}

// NewLocal creates a gateway over the given engine and registry.
func NewLocal(e *engine.Engine, reg *runner.Registry) *Local {
	return &Local{engine: e, registry: reg}
}

// resolve decodes a submission body into a runnable.
func (g *Local) resolve(body []byte) (string, engine.Runnable, error) {
	req, err := payload.Decode(body)
	if err != nil {
		return "", nil, err
	}

	rn, err := g.registry.Resolve(req.Name)
	if err != nil {
		return "", nil, err
	}

	return req.Name, engine.RunnableFunc(func(ctx context.Context) (any, error) {
		return rn.Run(ctx, req)
	}), nil
}

// Submit runs the request synchronously and returns its task id once the
// result is recorded.
func (g *Local) Submit(ctx context.Context, body []byte) (string, error) {
	name, r, err := g.resolve(body)
	if err != nil {
		return "", err
	}
	return g.engine.Run(ctx, name, r), nil
}

// SubmitAsync starts the request on the worker pool and returns its task id.
func (g *Local) SubmitAsync(ctx context.Context, body []byte) (string, error) {
	name, r, err := g.resolve(body)
	if err != nil {
		return "", err
	}
	return g.engine.Async(ctx, name, r), nil
}

// SubmitDeferred queues the request without starting it.
func (g *Local) SubmitDeferred(ctx context.Context, body []byte) (string, error) {
	name, r, err := g.resolve(body)
	if err != nil {
		return "", err
	}
	return g.engine.Defer(ctx, name, r), nil
}

// Await blocks until the task finishes or the budget elapses. A zero budget
// waits indefinitely.
func (g *Local) Await(ctx context.Context, id string, budget time.Duration) ([]byte, error) {
	waitCtx, cancel := timeout.Context(ctx, budget)
	defer cancel()

	res, err := g.engine.Await(waitCtx, id)
	if err != nil {
		return nil, err
	}
	return engine.EncodeValue(res.Value), nil
}

// AwaitAll waits for the whole batch under one shared budget and returns a
// JSON object keyed by task id. A per-task failure appears as that entry's
// {"error": ...} object rather than failing the batch.
func (g *Local) AwaitAll(ctx context.Context, ids []string, budget time.Duration) ([]byte, error) {
	waitCtx, cancel := timeout.Context(ctx, budget)
	defer cancel()

	results, err := g.engine.AwaitAll(waitCtx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(results))
	for id, res := range results {
		if res.Err != nil {
			out[id] = map[string]string{"error": res.Err.Error()}
			continue
		}
		out[id] = wireValue(res.Value)
	}

	buf, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode batch results: %v", err)
	}
	return buf, nil
}

// AwaitAny returns the first result of the batch under one shared budget.
func (g *Local) AwaitAny(ctx context.Context, ids []string, budget time.Duration) ([]byte, error) {
	waitCtx, cancel := timeout.Context(ctx, budget)
	defer cancel()

	res, err := g.engine.AwaitAny(waitCtx, ids)
	if err != nil {
		return nil, err
	}
	return engine.EncodeValue(res.Value), nil
}

// Cancel acknowledges a cancellation request. The task may already have
// finished; that is still an accepted request.
func (g *Local) Cancel(_ context.Context, id string) error {
	if !g.engine.Cancel(id) {
		return fmt.Errorf("task %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

// Info returns the task's wire record, or no data for an unknown task.
func (g *Local) Info(ctx context.Context, id string) ([]byte, error) {
	snap, err := g.engine.Info(ctx, id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	info := model.Info{Status: snap.Status.String()}
	if snap.Finished {
		secs := snap.Duration.Seconds()
		info.Duration = &secs
	}
	if snap.Err != nil {
		// Same id-prefixed convention as await errors, so the record's error
		// text classifies identically.
		info.Error = fmt.Sprintf("task %s: %s", id, snap.Err)
	}

	buf, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode task info: %v", err)
	}
	return buf, nil
}

// wireValue normalizes a result value for embedding in a JSON structure.
func wireValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}
