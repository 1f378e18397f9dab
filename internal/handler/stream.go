package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/middleware"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/service"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/metrics"
)

// ChatHandler handles the generation endpoint.
type ChatHandler struct {
	chatService *service.ChatService
	timeout     time.Duration
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler. timeout bounds one generation;
// zero disables the bound.
func NewChatHandler(chatSvc *service.ChatService, timeout time.Duration, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatSvc,
		timeout:     timeout,
		logger:      log,
	}
}

// Capabilities handles GET /chat
func (h *ChatHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatService.Capabilities())
}

// Chat handles POST /chat. Streaming requests receive an event stream of
// `data: <json>` records; buffered requests receive a single JSON response.
// Input and backend configuration errors are reported with a status code
// before any event is written.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateChatRequest(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	turn, err := h.chatService.Prepare(userID, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if !req.Streaming() {
		resp, err := h.chatService.Generate(ctx, turn)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.stream(ctx, w, turn)
}

func (h *ChatHandler) stream(ctx context.Context, w http.ResponseWriter, turn *service.Turn) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	for event := range h.chatService.Stream(ctx, turn) {
		if err := sendSSEEvent(w, flusher, event); err != nil {
			h.logger.Info("SSE client disconnected",
				zap.String("conversation_id", turn.Request.ConversationID),
				zap.Error(err),
			)
			return
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event model.StreamEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
