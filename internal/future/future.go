// Package future is the caller-facing handle layer. A Handle stands for one
// submitted task and resolves its outcome through the narrow gateway surface;
// it never talks to the engine directly, so the same handle works against any
// Caller implementation. Raw engine error text is classified here into typed
// faults before it reaches the application.
package future

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskgate/taskgate/internal/fault"
	"github.com/taskgate/taskgate/internal/gateway"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/payload"
)

// Client submits work and hands out handles.
type Client struct {
	caller gateway.Caller
}

// NewClient creates a client over the given gateway.
func NewClient(c gateway.Caller) *Client {
	return &Client{caller: c}
}

// Submit runs the request synchronously and returns a handle to its recorded
// outcome.
func (c *Client) Submit(ctx context.Context, name string, config map[string]string, app map[string]any, server map[string]string) (*Handle, error) {
	return c.submit(ctx, c.caller.Submit, name, config, app, server)
}

// SubmitAsync starts the request in the background and returns its handle.
func (c *Client) SubmitAsync(ctx context.Context, name string, config map[string]string, app map[string]any, server map[string]string) (*Handle, error) {
	return c.submit(ctx, c.caller.SubmitAsync, name, config, app, server)
}

// SubmitDeferred queues the request without starting it; execution begins on
// the handle's first Await.
func (c *Client) SubmitDeferred(ctx context.Context, name string, config map[string]string, app map[string]any, server map[string]string) (*Handle, error) {
	return c.submit(ctx, c.caller.SubmitDeferred, name, config, app, server)
}

type submitFunc func(ctx context.Context, body []byte) (string, error)

func (c *Client) submit(ctx context.Context, fn submitFunc, name string, config map[string]string, app map[string]any, server map[string]string) (*Handle, error) {
	body, err := payload.Build(name, config, app, server)
	if err != nil {
		return nil, err
	}

	id, err := fn(ctx, body)
	if err != nil {
		return nil, fault.Classify(err.Error())
	}
	return &Handle{caller: c.caller, id: id}, nil
}

// Handle reattaches to a previously submitted task by id.
func (c *Client) Handle(id string) *Handle {
	return &Handle{caller: c.caller, id: id}
}

// AwaitAll waits for every handle under one shared budget and returns a map
// from task id to result. An empty input resolves to an empty map without
// touching the gateway; a handle without an id fails the whole call before
// any gateway invocation.
func (c *Client) AwaitAll(ctx context.Context, handles []*Handle, budget time.Duration) (map[string]any, error) {
	if len(handles) == 0 {
		return map[string]any{}, nil
	}

	ids, err := handleIDs(handles)
	if err != nil {
		return nil, err
	}

	buf, err := c.caller.AwaitAll(ctx, ids, budget)
	if err != nil {
		return nil, fault.Classify(err.Error())
	}

	results := make(map[string]any, len(ids))
	if err := json.Unmarshal(buf, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrDecodingFailed, err)
	}
	return results, nil
}

// AwaitAny waits for the first of the handles to finish under one shared
// budget. An empty input resolves to nil without touching the gateway.
func (c *Client) AwaitAny(ctx context.Context, handles []*Handle, budget time.Duration) (any, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	ids, err := handleIDs(handles)
	if err != nil {
		return nil, err
	}

	buf, err := c.caller.AwaitAny(ctx, ids, budget)
	if err != nil {
		return nil, fault.Classify(err.Error())
	}
	return decodeResult(buf), nil
}

// handleIDs validates the batch up front so a malformed handle never costs a
// gateway round trip.
func handleIDs(handles []*Handle) ([]string, error) {
	ids := make([]string, len(handles))
	for i, h := range handles {
		if h == nil || h.id == "" {
			return nil, fmt.Errorf("%w: handle %d has no task id", fault.ErrInvalidArgument, i)
		}
		ids[i] = h.id
	}
	return ids, nil
}

// Handle stands for one submitted task.
type Handle struct {
	caller gateway.Caller
	id     string
}

// ID returns the task id backing this handle.
func (h *Handle) ID() (string, error) {
	if h.id == "" {
		return "", fmt.Errorf("%w: handle is not bound to a task", fault.ErrInvalidState)
	}
	return h.id, nil
}

// Await blocks until the task finishes or the budget elapses, returning the
// decoded result. A zero budget waits indefinitely. Awaiting more than once
// resolves from the recorded outcome.
func (h *Handle) Await(ctx context.Context, budget time.Duration) (any, error) {
	if h.id == "" {
		return nil, fmt.Errorf("%w: handle is not bound to a task", fault.ErrInvalidState)
	}

	buf, err := h.caller.Await(ctx, h.id, budget)
	if err != nil {
		return nil, fault.Classify(err.Error())
	}
	return decodeResult(buf), nil
}

// Cancel requests cancellation. Canceling a finished task is an accepted
// no-op; only an unknown task is an error.
func (h *Handle) Cancel(ctx context.Context) error {
	if h.id == "" {
		return fmt.Errorf("%w: handle is not bound to a task", fault.ErrInvalidState)
	}
	if err := h.caller.Cancel(ctx, h.id); err != nil {
		return fault.Classify(err.Error())
	}
	return nil
}

// Status returns the task's current status. A record that arrives but cannot
// be decoded degrades to Unknown; only the gateway call itself failing is an
// error.
func (h *Handle) Status(ctx context.Context) (model.Status, error) {
	info, err := h.info(ctx)
	if err != nil {
		if errors.Is(err, fault.ErrDecodingFailed) {
			return model.StatusUnknown, nil
		}
		return model.StatusUnknown, err
	}
	if info == nil {
		return model.StatusUnknown, nil
	}
	return model.ParseStatus(info.Status), nil
}

// Duration returns the task's wall-clock duration in seconds, or nil while it
// has not finished.
func (h *Handle) Duration(ctx context.Context) (*float64, error) {
	info, err := h.info(ctx)
	if err != nil || info == nil {
		return nil, err
	}
	return info.Duration, nil
}

// Err returns the task's classified failure, or nil if it has not failed.
func (h *Handle) Err(ctx context.Context) (*fault.TaskError, error) {
	info, err := h.info(ctx)
	if err != nil || info == nil {
		return nil, err
	}
	if info.Error == "" {
		return nil, nil
	}
	return fault.Classify(info.Error), nil
}

// info fetches and decodes the task record. A gateway "no data" outcome is
// returned as a nil record with no error. Fields are probed individually: only
// an unparseable record is a decode failure, a missing or wrong-typed field is
// simply absent.
func (h *Handle) info(ctx context.Context) (*model.Info, error) {
	if h.id == "" {
		return nil, fmt.Errorf("%w: handle is not bound to a task", fault.ErrInvalidState)
	}

	buf, err := h.caller.Info(ctx, h.id)
	if err != nil {
		return nil, fault.Classify(err.Error())
	}
	if buf == nil {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrDecodingFailed, err)
	}

	info := &model.Info{}
	if v, ok := raw["status"]; ok {
		_ = json.Unmarshal(v, &info.Status)
	}
	if v, ok := raw["duration"]; ok {
		var secs float64
		if json.Unmarshal(v, &secs) == nil {
			info.Duration = &secs
		}
	}
	if v, ok := raw["error"]; ok {
		_ = json.Unmarshal(v, &info.Error)
	}
	return info, nil
}

// decodeResult interprets a raw result buffer. Only JSON objects and arrays
// are decoded into structured data; anything else passes through as the raw
// string, so a task that returns the literal text "[ok]" is not mistaken for
// JSON unless it parses as such.
func decodeResult(buf []byte) any {
	if len(buf) == 0 {
		return nil
	}

	trimmed := bytes.TrimLeft(buf, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var v any
		if err := json.Unmarshal(buf, &v); err == nil {
			return v
		}
	}
	return string(buf)
}
