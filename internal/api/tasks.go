package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskgate/taskgate/internal/fault"
	"github.com/taskgate/taskgate/internal/future"
	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/timeout"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// submitTaskRequest is the JSON body for POST /v1/tasks.
type submitTaskRequest struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
	App    map[string]any    `json:"app"`
	Server map[string]string `json:"server"`
	Mode   string            `json:"mode"`
}

// submitTaskResponse acknowledges a submission.
type submitTaskResponse struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
}

// resultResponse wraps a single task result.
type resultResponse struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

// awaitBatchRequest is the JSON body for POST /v1/tasks/await.
type awaitBatchRequest struct {
	IDs     []string       `json:"ids"`
	Mode    string         `json:"mode"`
	Timeout timeout.Millis `json:"timeout"`
}

// listTasksResponse wraps the paginated history response.
type listTasksResponse struct {
	Tasks  []*model.Task `json:"tasks"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode == "" {
		req.Mode = model.ModeAsync
	}

	// The task must outlive this request; only the submission handshake is
	// bounded by the request context.
	ctx := context.WithoutCancel(r.Context())

	var (
		h   *future.Handle
		err error
	)
	switch req.Mode {
	case model.ModeRun:
		h, err = s.client.Submit(ctx, req.Name, req.Config, req.App, req.Server)
	case model.ModeAsync:
		h, err = s.client.SubmitAsync(ctx, req.Name, req.Config, req.App, req.Server)
	case model.ModeDeferred:
		h, err = s.client.SubmitDeferred(ctx, req.Name, req.Config, req.App, req.Server)
	default:
		s.writeError(w, http.StatusBadRequest, "mode must be run, async, or deferred")
		return
	}
	if err != nil {
		s.writeFault(w, err)
		return
	}

	id, err := h.ID()
	if err != nil {
		s.writeFault(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitTaskResponse{ID: id, Mode: req.Mode})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	buf, err := s.caller.Info(r.Context(), id)
	if err != nil {
		s.logger.Error("get task info", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if buf == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf); err != nil {
		s.logger.Error("write task info", "error", err)
	}
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	budget, err := parseBudget(r, s.awaitDeadline)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.client.Handle(id).Await(r.Context(), budget)
	if err != nil {
		s.writeFault(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resultResponse{ID: id, Result: result})
}

func (s *Server) handleAwaitBatch(w http.ResponseWriter, r *http.Request) {
	var req awaitBatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, fault.ErrInvalidDuration) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	handles := make([]*future.Handle, len(req.IDs))
	for i, id := range req.IDs {
		handles[i] = s.client.Handle(id)
	}

	switch req.Mode {
	case "", "all":
		results, err := s.client.AwaitAll(r.Context(), handles, req.Timeout.Duration)
		if err != nil {
			s.writeFault(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
	case "any":
		result, err := s.client.AwaitAny(r.Context(), handles, req.Timeout.Duration)
		if err != nil {
			s.writeFault(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
	default:
		s.writeError(w, http.StatusBadRequest, "mode must be all or any")
	}
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.client.Handle(id).Cancel(r.Context()); err != nil {
		s.writeFault(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "canceled": true})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, total, err := s.store.ListTasks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}

	s.writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleListRunners(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"runners": s.registry.List()})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeFault maps a classified task fault to its HTTP status. Local protocol
// errors map to 400, engine-side failures to gateway-style statuses.
func (s *Server) writeFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fault.ErrInvalidArgument),
		errors.Is(err, fault.ErrInvalidDuration),
		errors.Is(err, fault.ErrInvalidState):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fault.ErrEncodingFailed),
		errors.Is(err, fault.ErrDecodingFailed):
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if te, ok := fault.AsTask(err); ok {
		switch te.Category {
		case fault.NotFound:
			s.writeError(w, http.StatusNotFound, te.Message)
		case fault.Timeout:
			s.writeError(w, http.StatusGatewayTimeout, te.Message)
		case fault.Canceled:
			s.writeError(w, http.StatusConflict, te.Message)
		default:
			s.writeError(w, http.StatusBadGateway, te.Message)
		}
		return
	}

	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// parseBudget reads the timeout query parameter: a bare integer counts
// milliseconds, anything else must be a duration string. Absent falls back to
// the server default.
func parseBudget(r *http.Request, fallback time.Duration) (time.Duration, error) {
	q := r.URL.Query().Get("timeout")
	if q == "" {
		return fallback, nil
	}
	if ms, err := strconv.ParseInt(q, 10, 64); err == nil {
		return timeout.FromMillis(ms)
	}
	return timeout.ParseString(q)
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
