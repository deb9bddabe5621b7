package api

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStreamEventsFinishedTask(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	id := submitTask(t, ts.URL, "echo", "run", nil)

	resp, err := http.Get(fmt.Sprintf("%s/v1/tasks/%s/events", ts.URL, id))
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	var sawStatus, sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(2 * time.Second)
	for scanner.Scan() {
		select {
		case <-deadline:
			t.Fatal("timed out reading event stream")
		default:
		}
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "completed") {
			sawStatus = true
		}
		if line == "event: done" {
			sawDone = true
		}
	}

	if !sawStatus {
		t.Error("stream had no terminal status event")
	}
	if !sawDone {
		t.Error("stream had no done event")
	}
}

func TestStreamEventsUnknownTask(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/tasks/does-not-exist/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
