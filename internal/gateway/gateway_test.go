package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taskgate/taskgate/internal/engine"
	"github.com/taskgate/taskgate/internal/fault"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/payload"
	"github.com/taskgate/taskgate/internal/runner"
)

func newTestGateway(t *testing.T) *Local {
	t.Helper()
	reg := runner.NewRegistry()
	runner.RegisterBuiltins(reg)
	e := engine.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return NewLocal(e, reg)
}

func mustBody(t *testing.T, name string, config map[string]string) []byte {
	t.Helper()
	body, err := payload.Build(name, config, nil, nil)
	if err != nil {
		t.Fatalf("payload.Build: %v", err)
	}
	return body
}

func TestSubmitAndAwait(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.Submit(ctx, mustBody(t, "echo", map[string]string{"k": "v"}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(id) != model.IDLength {
		t.Fatalf("id length = %d, want %d", len(id), model.IDLength)
	}

	out, err := g.Await(ctx, id, 0)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}

	var echoed payload.Request
	if err := json.Unmarshal(out, &echoed); err != nil {
		t.Fatalf("result not JSON: %v (%q)", err, out)
	}
	if echoed.Name != "echo" || echoed.Config["k"] != "v" {
		t.Errorf("echoed = %+v", echoed)
	}
}

func TestSubmitInvalidBody(t *testing.T) {
	g := newTestGateway(t)

	_, err := g.Submit(context.Background(), []byte("{not json"))
	if !errors.Is(err, fault.ErrDecodingFailed) {
		t.Errorf("error = %v, want ErrDecodingFailed", err)
	}
}

func TestSubmitUnknownRunner(t *testing.T) {
	g := newTestGateway(t)

	_, err := g.SubmitAsync(context.Background(), mustBody(t, "nope", nil))
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("error = %v, want unknown runner", err)
	}
}

func TestAwaitBudgetExpires(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.SubmitAsync(ctx, mustBody(t, "sleep", map[string]string{"duration": "5s"}))
	if err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}

	_, err = g.Await(ctx, id, 30*time.Millisecond)
	if err == nil {
		t.Fatal("Await returned before budget expired")
	}
	te := fault.Classify(err.Error())
	if te.Category != fault.Timeout {
		t.Errorf("category = %v for %q, want Timeout", te.Category, err)
	}
	if te.TaskID != id {
		t.Errorf("extracted id = %q, want %q", te.TaskID, id)
	}
}

func TestAwaitAll(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	ok, err := g.SubmitAsync(ctx, mustBody(t, "echo", nil))
	if err != nil {
		t.Fatalf("SubmitAsync(echo): %v", err)
	}
	bad, err := g.SubmitAsync(ctx, mustBody(t, "fail", map[string]string{"reason": "boom"}))
	if err != nil {
		t.Fatalf("SubmitAsync(fail): %v", err)
	}

	out, err := g.AwaitAll(ctx, []string{ok, bad}, time.Second)
	if err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}

	var results map[string]json.RawMessage
	if err := json.Unmarshal(out, &results); err != nil {
		t.Fatalf("batch not a JSON object: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	var failed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(results[bad], &failed); err != nil {
		t.Fatalf("failed entry: %v", err)
	}
	if !strings.Contains(failed.Error, "boom") {
		t.Errorf("failed entry = %q, want reason in message", failed.Error)
	}
}

func TestAwaitAllEmpty(t *testing.T) {
	g := newTestGateway(t)

	out, err := g.AwaitAll(context.Background(), nil, time.Second)
	if err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}
	if string(out) != "{}" {
		t.Errorf("batch = %q, want empty object", out)
	}
}

func TestAwaitAnyFirstWins(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	slow, err := g.SubmitAsync(ctx, mustBody(t, "sleep", map[string]string{"duration": "5s"}))
	if err != nil {
		t.Fatalf("SubmitAsync(sleep): %v", err)
	}
	fast, err := g.SubmitAsync(ctx, mustBody(t, "echo", nil))
	if err != nil {
		t.Fatalf("SubmitAsync(echo): %v", err)
	}

	out, err := g.AwaitAny(ctx, []string{slow, fast}, time.Second)
	if err != nil {
		t.Fatalf("AwaitAny: %v", err)
	}
	if len(out) == 0 {
		t.Error("AwaitAny returned no data")
	}
}

func TestCancel(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.SubmitDeferred(ctx, mustBody(t, "sleep", map[string]string{"duration": "5s"}))
	if err != nil {
		t.Fatalf("SubmitDeferred: %v", err)
	}

	if err := g.Cancel(ctx, id); err != nil {
		t.Errorf("Cancel: %v", err)
	}
	if err := g.Cancel(ctx, "does-not-exist"); err == nil {
		t.Error("Cancel of unknown id succeeded")
	}
}

func TestInfo(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.Submit(ctx, mustBody(t, "echo", nil))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	buf, err := g.Info(ctx, id)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}

	var info model.Info
	if err := json.Unmarshal(buf, &info); err != nil {
		t.Fatalf("info not JSON: %v", err)
	}
	if info.Status != model.StatusCompleted.String() {
		t.Errorf("status = %q, want completed", info.Status)
	}
	if info.Duration == nil {
		t.Error("finished task has no duration")
	}
}

func TestInfoUnknownIsNoData(t *testing.T) {
	g := newTestGateway(t)

	buf, err := g.Info(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if buf != nil {
		t.Errorf("buf = %q, want no data", buf)
	}
}
