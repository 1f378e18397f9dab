package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/metrics"
)

// EventPublisher publishes conversation lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher drops every event. It is used when no event bus is configured.
type NopPublisher struct{}

// PublishEvent does nothing.
func (NopPublisher) PublishEvent(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// publish sends an event without failing the caller. Publish errors are
// logged and counted.
func publish(ctx context.Context, events EventPublisher, log *logger.Logger, userID, conversationID string, eventType model.EventType, reason string, metadata map[string]any) {
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           eventType,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := events.PublishEvent(context.WithoutCancel(ctx), event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "error").Inc()
		log.Warn("failed to publish conversation event",
			zap.String("conversation_id", conversationID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(eventType), "ok").Inc()
}
