package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskgate/taskgate/internal/payload"
)

// RegisterBuiltins installs the runners that ship with the server. They are
// intentionally small: enough to exercise every outcome a task can have.
func RegisterBuiltins(reg *Registry) {
	reg.Register("echo", Func(runEcho))
	reg.Register("sleep", Func(runSleep))
	reg.Register("fail", Func(runFail))
}

// runEcho reflects the request back to the caller.
func runEcho(_ context.Context, req *payload.Request) (any, error) {
	out := map[string]any{"name": req.Name}
	if len(req.Config) > 0 {
		out["config"] = req.Config
	}
	if req.Environment != nil {
		if len(req.Environment.App) > 0 {
			out["app"] = req.Environment.App
		}
		if len(req.Environment.CGI) > 0 {
			out["cgi"] = req.Environment.CGI
		}
	}
	return out, nil
}

// runSleep blocks for the duration named in config ("duration", default 1s),
// honoring cancellation.
func runSleep(ctx context.Context, req *payload.Request) (any, error) {
	d := time.Second
	if s, ok := req.Config["duration"]; ok {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("sleep: bad duration %q: %w", s, err)
		}
		d = parsed
	}

	select {
	case <-time.After(d):
		return map[string]any{"slept": d.String()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runFail always errors, with the message taken from config ("reason") when
// present.
func runFail(_ context.Context, req *payload.Request) (any, error) {
	if reason, ok := req.Config["reason"]; ok {
		return nil, errors.New(reason)
	}
	return nil, errors.New("deliberate failure")
}
