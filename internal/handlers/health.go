package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// HealthHandler reports readiness per §6.1: {ready, pipelineReady, status}.
// ready flips true once the server has finished building its routing
// runtime (pool preload + route table construction in buildRuntime); until
// then pipelineReady mirrors it, since nothing downstream could be ready
// before the module pool itself is.
type HealthHandler struct {
	logger *slog.Logger
	ready  *atomic.Bool
}

func NewHealthHandler(logger *slog.Logger, ready *atomic.Bool) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		ready:  ready,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ready := h.ready != nil && h.ready.Load()

	status := "ok"
	if !ready {
		status = "starting"
	}

	w.Header().Set("Content-Type", "application/json")

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(map[string]any{
		"ready":         ready,
		"pipelineReady": ready,
		"status":        status,
	}); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}
