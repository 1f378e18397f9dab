package service

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/chat"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

// failureTimeout is the failed event reason for a generation that ran out of time.
const failureTimeout = "timeout"

// ChatService runs generation turns and records finished exchanges.
type ChatService struct {
	registry      *llm.Registry
	orchestrator  *chat.Orchestrator
	conversations *ConversationService
	events        EventPublisher
	systemPrompt  string
	logger        *logger.Logger
}

// NewChatService creates a new chat service. systemPrompt replaces the default
// persona when non-empty; a request's own system prompt still wins.
func NewChatService(
	registry *llm.Registry,
	orchestrator *chat.Orchestrator,
	conversations *ConversationService,
	events EventPublisher,
	systemPrompt string,
	log *logger.Logger,
) *ChatService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ChatService{
		registry:      registry,
		orchestrator:  orchestrator,
		conversations: conversations,
		events:        events,
		systemPrompt:  systemPrompt,
		logger:        log,
	}
}

// Turn is a resolved generation ready to run.
type Turn struct {
	UserID  string
	Request *chat.Request
	Client  llm.Client

	// persist is set when the caller named a conversation and is signed in.
	persist bool
	prompt  *model.Message
}

// Prepare resolves the backend, normalizes the messages and applies parameter
// defaults. An unconfigured backend fails here, before anything is streamed.
func (s *ChatService) Prepare(userID string, req *model.ChatRequest) (*Turn, error) {
	handle := llm.Resolve(req.Model)

	client, err := s.registry.Client(handle.Provider)
	if err != nil {
		return nil, err
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.systemPrompt
	}
	messages, err := chat.Normalize(req.Messages, systemPrompt)
	if err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.Must(uuid.NewV7()).String()
	}

	temperature := chat.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := chat.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	turn := &Turn{
		UserID: userID,
		Client: client,
		Request: &chat.Request{
			ConversationID: conversationID,
			Handle:         handle,
			Messages:       messages,
			Temperature:    temperature,
			MaxTokens:      maxTokens,
		},
		persist: userID != "" && req.ConversationID != "",
		prompt:  lastUserMessage(req.Messages),
	}
	return turn, nil
}

// Stream returns the turn's event sequence. When the generation finishes the
// exchange is recorded before the finished event is handed to the consumer.
// A generation cut short by ctx's deadline ends with an error event.
func (s *ChatService) Stream(ctx context.Context, turn *Turn) iter.Seq[model.StreamEvent] {
	return func(yield func(model.StreamEvent) bool) {
		var content strings.Builder
		terminated := false
		for event := range s.orchestrator.Stream(ctx, turn.Client, turn.Request) {
			switch event.Type {
			case model.StreamEventTextChunk:
				content.WriteString(event.Content)
			case model.StreamEventFinished:
				var usage model.Usage
				if event.Usage != nil {
					usage = *event.Usage
				}
				s.complete(ctx, turn, content.String(), usage, event.FinishReason)
			case model.StreamEventError:
				s.fail(ctx, turn, event.Error)
			}
			terminated = event.Terminal()
			if !yield(event) {
				return
			}
		}

		if !terminated && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("generation timed out", zap.String("conversation_id", turn.Request.ConversationID))
			s.fail(ctx, turn, failureTimeout)
			yield(model.ErrorEvent(turn.Request.ConversationID, "generation timed out"))
		}
	}
}

// Generate runs the turn to completion and returns the buffered response.
func (s *ChatService) Generate(ctx context.Context, turn *Turn) (*model.ChatResponse, error) {
	result, err := s.orchestrator.Generate(ctx, turn.Client, turn.Request)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			s.logger.Warn("generation timed out", zap.String("conversation_id", turn.Request.ConversationID))
			s.fail(ctx, turn, failureTimeout)
		case ctx.Err() == nil:
			s.fail(ctx, turn, err.Error())
		}
		return nil, err
	}

	reply := s.complete(ctx, turn, result.Content, result.Usage, result.FinishReason)
	return &model.ChatResponse{
		Message:        reply,
		ConversationID: turn.Request.ConversationID,
		Model:          turn.Request.Handle.Model,
		Usage:          result.Usage,
		FinishReason:   result.FinishReason,
	}, nil
}

// Capabilities describes the providers and parameter limits of the service.
func (s *ChatService) Capabilities() *model.Capabilities {
	providers := make([]model.ProviderStatus, 0, len(llm.Providers))
	for _, p := range llm.Providers {
		providers = append(providers, model.ProviderStatus{
			Name:       string(p),
			Configured: s.registry.Configured(p),
		})
	}
	return &model.Capabilities{
		Streaming:    true,
		DefaultModel: llm.DefaultModel,
		Providers:    providers,
		Limits: model.GenerationLimits{
			TemperatureMin:     chat.MinTemperature,
			TemperatureMax:     chat.MaxTemperature,
			TemperatureDefault: chat.DefaultTemperature,
			MaxTokensMin:       chat.MinMaxTokens,
			MaxTokensMax:       chat.MaxMaxTokens,
			MaxTokensDefault:   chat.DefaultMaxTokens,
		},
	}
}

func (s *ChatService) complete(ctx context.Context, turn *Turn, content string, usage model.Usage, finishReason string) model.Message {
	reply := model.NewMessage(model.RoleAssistant, content)
	conversationID := turn.Request.ConversationID

	// The exchange is recorded even if the caller has already gone away.
	ctx = context.WithoutCancel(ctx)

	if turn.persist && turn.prompt != nil && s.conversations != nil {
		if err := s.conversations.RecordExchange(ctx, turn.UserID, conversationID, *turn.prompt, reply); err != nil {
			s.logger.Error("failed to record exchange",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}

	publish(ctx, s.events, s.logger, turn.UserID, conversationID, model.EventTypeCompleted, finishReason, map[string]any{
		"provider":         string(turn.Request.Handle.Provider),
		"model":            turn.Request.Handle.Model,
		"promptTokens":     usage.PromptTokens,
		"completionTokens": usage.CompletionTokens,
	})
	return reply
}

func (s *ChatService) fail(ctx context.Context, turn *Turn, reason string) {
	publish(ctx, s.events, s.logger, turn.UserID, turn.Request.ConversationID, model.EventTypeFailed, reason, map[string]any{
		"provider": string(turn.Request.Handle.Provider),
		"model":    turn.Request.Handle.Model,
	})
}

func lastUserMessage(messages []model.Message) *model.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			msg := messages[i]
			if msg.Timestamp.IsZero() {
				msg.Timestamp = model.NewMessage(msg.Role, msg.Content).Timestamp
			}
			return &msg
		}
	}
	return nil
}
