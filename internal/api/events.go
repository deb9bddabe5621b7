package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskgate/taskgate/internal/engine"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the task exists.
	snap, err := s.engine.Info(r.Context(), id)
	if errors.Is(err, engine.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task for events", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Already finished: emit the terminal status and close immediately.
	if snap.Finished {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEStatus(w, engine.Event{Status: snap.Status, At: time.Now().UTC()})
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Safe even if the task finished between the check above and this call:
	// Subscribe on a closed topic returns a closed channel, so the loop below
	// exits immediately.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Task finished; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEStatus(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEStatus writes one status transition as an SSE data event.
func writeSSEStatus(w http.ResponseWriter, ev engine.Event) error {
	buf, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", buf)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
