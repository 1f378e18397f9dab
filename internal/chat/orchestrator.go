package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/metrics"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/tracing"
)

// Generation parameter bounds.
const (
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 2.0

	DefaultMaxTokens = 2048
	MinMaxTokens     = 1
	MaxMaxTokens     = 4000
)

// Request is one generation turn. Messages must already be normalized.
type Request struct {
	ConversationID string
	Handle         llm.Handle
	Messages       []model.Message
	Temperature    float64
	MaxTokens      int
}

// Result is the aggregate of a buffered generation.
type Result struct {
	Content      string
	Usage        model.Usage
	FinishReason string
}

type state int

const (
	stateIdle state = iota
	stateStreaming
	stateFinished
	stateFailed
	stateAbandoned
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStreaming:
		return "streaming"
	case stateFinished:
		return "finished"
	case stateFailed:
		return "failed"
	default:
		return "abandoned"
	}
}

// Orchestrator drives backend generation.
type Orchestrator struct {
	logger *logger.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(log *logger.Logger) *Orchestrator {
	return &Orchestrator{logger: log}
}

// Stream returns the lazy event sequence of one generation. Nothing is sent to
// the backend until the sequence is ranged over; each range starts a new
// generation from scratch.
//
// Every backend delta with content becomes one text-chunk event, in order.
// A completed run ends with exactly one conversation-finished event and a
// failed run with exactly one error event. If the consumer stops early the
// backend stream is closed and nothing more is produced. A backend error caused
// by ctx being done is treated the same way and yields no event.
func (o *Orchestrator) Stream(ctx context.Context, client llm.Client, req *Request) iter.Seq[model.StreamEvent] {
	return func(yield func(model.StreamEvent) bool) {
		ctx, span := tracing.Start(ctx, "chat.stream",
			attribute.String("llm.provider", client.Name()),
			attribute.String("llm.model", req.Handle.Model),
			attribute.String("conversation.id", req.ConversationID),
		)
		defer span.End()

		start := time.Now()
		current := stateIdle
		var (
			usage        model.Usage
			finishReason string
			chunks       int
		)

		defer func() {
			span.SetAttributes(attribute.String("chat.state", current.String()), attribute.Int("chat.chunks", chunks))
			metrics.RecordLLMStream(client.Name(), req.Handle.Model, current.String(),
				time.Since(start).Seconds(), usage.PromptTokens, usage.CompletionTokens)
		}()

		current = stateStreaming
		for delta, err := range client.Stream(ctx, toCompletionRequest(req)) {
			if err != nil {
				if ctx.Err() != nil {
					current = stateAbandoned
					o.logger.Info("generation abandoned",
						zap.String("conversation_id", req.ConversationID),
						zap.Error(err),
					)
					return
				}

				current = stateFailed
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				o.logger.Warn("generation failed",
					zap.String("provider", client.Name()),
					zap.String("model", req.Handle.Model),
					zap.String("conversation_id", req.ConversationID),
					zap.Int("chunks", chunks),
					zap.Error(err),
				)
				yield(model.ErrorEvent(req.ConversationID, err.Error()))
				return
			}

			if delta.Usage != nil {
				usage = *delta.Usage
			}
			if delta.FinishReason != "" {
				finishReason = delta.FinishReason
			}
			if delta.Content == "" {
				continue
			}

			chunks++
			if !yield(model.TextChunk(req.ConversationID, delta.Content)) {
				current = stateAbandoned
				return
			}
		}

		current = stateFinished
		yield(model.Finished(req.ConversationID, usage, finishReason))
	}
}

// Generate runs the stream to completion and returns the concatenated content.
// A failed or abandoned run returns a ProviderError and no partial content.
func (o *Orchestrator) Generate(ctx context.Context, client llm.Client, req *Request) (*Result, error) {
	var content strings.Builder
	for event := range o.Stream(ctx, client, req) {
		switch event.Type {
		case model.StreamEventTextChunk:
			content.WriteString(event.Content)
		case model.StreamEventFinished:
			result := &Result{
				Content:      content.String(),
				FinishReason: event.FinishReason,
			}
			if event.Usage != nil {
				result.Usage = *event.Usage
			}
			return result, nil
		case model.StreamEventError:
			return nil, &model.ProviderError{Provider: client.Name(), Err: errors.New(event.Error)}
		}
	}

	err := ctx.Err()
	if err == nil {
		err = errors.New("stream ended without completion")
	}
	return nil, &model.ProviderError{Provider: client.Name(), Err: err}
}

func toCompletionRequest(req *Request) *llm.CompletionRequest {
	return &llm.CompletionRequest{
		Model:       req.Handle.Model,
		Messages:    llm.ToChatMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}
