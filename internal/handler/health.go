package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/service"
)

const readyTimeout = 2 * time.Second

// ConnectionChecker reports whether an optional dependency is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	conversations *service.ConversationService
	events        ConnectionChecker
}

// NewHealthHandler creates a new health handler. events may be nil when the
// event bus is disabled.
func NewHealthHandler(conversations *service.ConversationService, events ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		conversations: conversations,
		events:        events,
	}
}

// ReadyResponse reports the state of each dependency.
type ReadyResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Events string `json:"events"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. An unreachable store degrades the service but does
// not take it out of rotation; a configured event bus that lost its connection does.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Store: "ok", Events: "disabled"}
	if err := h.conversations.Ready(ctx); err != nil {
		resp.Store = "degraded"
	}

	status := http.StatusOK
	if h.events != nil {
		if h.events.IsConnected() {
			resp.Events = "ok"
		} else {
			resp.Events = "disconnected"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
