// Package llm provides LLM backend interfaces, model routing and provider implementations.
package llm

import (
	"context"
	"iter"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// CompletionRequest represents a completion request sent to a backend.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Delta is one incremental unit of backend output. Content deltas arrive in
// emission order; FinishReason and Usage are normally carried by the last delta.
type Delta struct {
	Content      string
	FinishReason string
	Usage        *model.Usage
}

// Client is the interface for LLM providers.
//
// Stream yields deltas until the backend completes, or a single non-nil error
// when it fails. Implementations must stop producing and release their
// connection as soon as yield returns false.
type Client interface {
	// Stream starts a streaming completion.
	Stream(ctx context.Context, req *CompletionRequest) iter.Seq2[Delta, error]

	// Name returns the provider name.
	Name() string
}

// ToChatMessages converts conversation messages into backend messages.
func ToChatMessages(messages []model.Message) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	for i, msg := range messages {
		out[i] = ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}
