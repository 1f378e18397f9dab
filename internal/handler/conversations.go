// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/middleware"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/service"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

// ConversationHandler handles conversation endpoints. Every route is mounted
// behind middleware.RequireUser.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateCreateConversation(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Create(ctx, userID, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	query := r.URL.Query()
	limit, offset, err := middleware.ValidatePagination(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.List(ctx, userID, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Get(ctx, userID, conversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Replace handles PUT /conversations/{id}
func (h *ConversationHandler) Replace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req model.UpdateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateUpdateConversation(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Replace(ctx, userID, conversationID, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	deleted, err := h.service.Delete(ctx, userID, conversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !deleted {
		writeServiceError(w, r, h.logger, model.ErrNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteMany handles DELETE /conversations?ids=a,b,c
func (h *ConversationHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	ids, err := middleware.ValidateConversationIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	deleted, err := h.service.DeleteMany(ctx, userID, ids)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, model.DeleteConversationsResponse{Deleted: deleted})
}
