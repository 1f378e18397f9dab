// Package chat drives a single generation turn: it normalizes the conversation
// input and turns a backend's incremental output into a typed event sequence.
package chat

import (
	"time"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// DefaultSystemPrompt is the persona used when the caller supplies none.
const DefaultSystemPrompt = `You are a knowledgeable, careful assistant that answers questions clearly and accurately.
Think through the question before answering. Prefer concise, well-structured answers and use
Markdown formatting (lists, headings, code blocks) where it improves readability.
If you are unsure of something, say so instead of guessing.
Always reply in the language the user wrote in.`

// Normalize returns the canonical message sequence for a backend: exactly one
// system message followed by history unchanged. systemPrompt overrides the
// default persona when non-empty.
func Normalize(history []model.Message, systemPrompt string) ([]model.Message, error) {
	if len(history) == 0 {
		return nil, model.NewValidationError("messages", "at least one message is required")
	}

	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	out := make([]model.Message, 0, len(history)+1)
	out = append(out, model.Message{
		Role:      model.RoleSystem,
		Content:   systemPrompt,
		Timestamp: time.Now().UTC(),
	})
	return append(out, history...), nil
}
