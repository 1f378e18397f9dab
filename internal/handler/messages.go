package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/middleware"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/service"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

// MessageHandler appends single messages to a conversation.
type MessageHandler struct {
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(convSvc *service.ConversationService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		conversationService: convSvc,
		logger:              log,
	}
}

// Append handles PATCH /conversations/{id}. The message is added at the end
// of the history and the updated conversation is returned.
func (h *MessageHandler) Append(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req model.AppendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateAppendMessage(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.conversationService.Append(ctx, userID, conversationID, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
