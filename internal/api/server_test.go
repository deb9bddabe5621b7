package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/taskgate/taskgate/internal/engine"
	"github.com/taskgate/taskgate/internal/gateway"
	"github.com/taskgate/taskgate/internal/runner"
	"github.com/taskgate/taskgate/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg := runner.NewRegistry()
	runner.RegisterBuiltins(reg)

	eng := engine.New(engine.WithStore(s))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(":0", gateway.NewLocal(eng, reg), eng, s, reg, 5*time.Second, logger)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRouterPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/test", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /test: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}
