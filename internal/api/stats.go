package api

import (
	"net/http"

	"github.com/taskgate/taskgate/internal/engine"
	"github.com/taskgate/taskgate/internal/store"
)

// statsResponse is the JSON response for GET /v1/stats. Live covers tasks
// still in memory; History covers the persisted record.
type statsResponse struct {
	Live    engine.Stats     `json:"live"`
	History *store.TaskStats `json:"history"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.GetTaskStats(r.Context())
	if err != nil {
		s.logger.Error("get task stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Live:    s.engine.Stats(),
		History: history,
	})
}
