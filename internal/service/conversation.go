// Package service provides business logic for the chat service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/store"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/metrics"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/tracing"
)

// ConversationService handles conversation operations on top of a store.
// When the store is unconfigured or unreachable, operations degrade to
// harmless defaults instead of failing.
type ConversationService struct {
	store  store.Store
	events EventPublisher
	logger *logger.Logger
	now    func() time.Time
}

// NewConversationService creates a new conversation service. A nil events
// publisher disables event publishing.
func NewConversationService(st store.Store, events EventPublisher, log *logger.Logger) *ConversationService {
	if st == nil {
		st = store.Unconfigured{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ConversationService{
		store:  st,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// Create creates a new conversation. With a system prompt the conversation is
// seeded with a single system message.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	ctx, span := s.span(ctx, "create", "")
	defer span.End()

	now := s.now().UTC()
	modelID := req.Model
	if modelID == "" {
		modelID = llm.DefaultModel
	}

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     req.Title,
		Model:     modelID,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.SystemPrompt != "" {
		conv.Messages = append(conv.Messages, model.Message{
			Role:      model.RoleSystem,
			Content:   req.SystemPrompt,
			Timestamp: now,
		})
	}

	if err := s.store.Create(ctx, conv); err != nil {
		if s.degraded("create", err) {
			return conv, nil
		}
		return nil, s.failed(span, "create", err)
	}

	metrics.RecordStoreOp("create", "ok")
	metrics.ConversationsTotal.Inc()
	publish(ctx, s.events, s.logger, userID, conv.ID, model.EventTypeCreated, "", nil)

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
	)

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	ctx, span := s.span(ctx, "get", conversationID)
	defer span.End()

	conv, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		if s.degraded("get", err) {
			return nil, model.ErrNotFound
		}
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, s.failed(span, "get", err)
	}

	metrics.RecordStoreOp("get", "ok")
	return conv, nil
}

// Append adds a single message to the end of a conversation.
func (s *ConversationService) Append(ctx context.Context, userID, conversationID string, req *model.AppendMessageRequest) (*model.Conversation, error) {
	ctx, span := s.span(ctx, "append", conversationID)
	defer span.End()

	msg := model.Message{
		Role:      req.Role,
		Content:   req.Content,
		Timestamp: s.now().UTC(),
	}

	conv, err := s.appendMessages(ctx, userID, conversationID, msg)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, s.failed(span, "append", err)
	}

	publish(ctx, s.events, s.logger, userID, conversationID, model.EventTypeAppended, "", map[string]any{
		"role": string(msg.Role),
	})
	return conv, nil
}

// Replace overwrites the title and/or message list of a conversation.
func (s *ConversationService) Replace(ctx context.Context, userID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	ctx, span := s.span(ctx, "replace", conversationID)
	defer span.End()

	conv, err := s.store.Replace(ctx, userID, conversationID, req.Title, req.Messages)
	if err != nil {
		if s.degraded("replace", err) {
			return nil, model.ErrNotFound
		}
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, s.failed(span, "replace", err)
	}

	metrics.RecordStoreOp("replace", "ok")
	publish(ctx, s.events, s.logger, userID, conversationID, model.EventTypeReplaced, "", nil)
	return conv, nil
}

// Delete removes a conversation and reports whether it existed.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	ctx, span := s.span(ctx, "delete", conversationID)
	defer span.End()

	deleted, err := s.store.Delete(ctx, userID, conversationID)
	if err != nil {
		if s.degraded("delete", err) {
			return false, nil
		}
		return false, s.failed(span, "delete", err)
	}

	metrics.RecordStoreOp("delete", "ok")
	if deleted {
		publish(ctx, s.events, s.logger, userID, conversationID, model.EventTypeDeleted, "", nil)
	}
	return deleted, nil
}

// DeleteMany deletes conversations one by one and returns how many existed.
// It is not transactional: a failure part way leaves earlier deletions in place.
func (s *ConversationService) DeleteMany(ctx context.Context, userID string, conversationIDs []string) (int, error) {
	count := 0
	for _, id := range conversationIDs {
		deleted, err := s.Delete(ctx, userID, id)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// List retrieves a page of the user's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) (*model.ListConversationsResponse, error) {
	ctx, span := s.span(ctx, "list", "")
	defer span.End()

	page, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		if s.degraded("list", err) {
			return &model.ListConversationsResponse{Conversations: []model.Conversation{}}, nil
		}
		return nil, s.failed(span, "list", err)
	}

	metrics.RecordStoreOp("list", "ok")
	return &model.ListConversationsResponse{
		Conversations: page.Items,
		Total:         page.Total,
		HasMore:       page.HasMore(limit, offset),
	}, nil
}

// RecordExchange appends a user prompt and the assistant reply to an existing
// conversation in one write, so either both are stored or neither is. A
// conversation that does not exist for the user is skipped.
func (s *ConversationService) RecordExchange(ctx context.Context, userID, conversationID string, prompt, reply model.Message) error {
	ctx, span := s.span(ctx, "record_exchange", conversationID)
	defer span.End()

	if _, err := s.appendMessages(ctx, userID, conversationID, prompt, reply); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Debug("exchange not recorded, conversation not found",
				zap.String("conversation_id", conversationID),
			)
			return nil
		}
		return s.failed(span, "record_exchange", err)
	}
	return nil
}

// Ready reports whether the store is reachable.
func (s *ConversationService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ConversationService) appendMessages(ctx context.Context, userID, conversationID string, msgs ...model.Message) (*model.Conversation, error) {
	conv, err := s.store.Append(ctx, userID, conversationID, msgs...)
	if err != nil {
		if s.degraded("append", err) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	metrics.RecordStoreOp("append", "ok")
	for _, msg := range msgs {
		metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	}
	return conv, nil
}

// degraded reports whether err means the store is unavailable, recording the
// degraded outcome when it does.
func (s *ConversationService) degraded(op string, err error) bool {
	if !errors.Is(err, model.ErrStoreUnavailable) {
		return false
	}
	metrics.RecordStoreOp(op, "degraded")
	s.logger.Warn("conversation store unavailable, degrading",
		zap.String("op", op),
		zap.Error(err),
	)
	return true
}

func (s *ConversationService) failed(span trace.Span, op string, err error) error {
	metrics.RecordStoreOp(op, "error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error("conversation store operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
	return fmt.Errorf("%s conversation: %w", op, err)
}

func (s *ConversationService) span(ctx context.Context, op, conversationID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("store.op", op)}
	if conversationID != "" {
		attrs = append(attrs, attribute.String("conversation.id", conversationID))
	}
	return tracing.Start(ctx, "conversation."+op, attrs...)
}
