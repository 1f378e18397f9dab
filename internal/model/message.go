package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single conversation turn.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// AppendMessageRequest is the body of PATCH /conversations/{id}.
type AppendMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage is token accounting reported by a backend. Values are passed through untouched.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversationId,omitempty"`
	Model          string    `json:"model,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxTokens      *int      `json:"maxTokens,omitempty"`
	Stream         *bool     `json:"stream,omitempty"`
	SystemPrompt   string    `json:"systemPrompt,omitempty"`
}

// Streaming reports whether the caller asked for an event stream. Defaults to true.
func (r *ChatRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// ChatResponse is the buffered response of POST /chat.
type ChatResponse struct {
	Message        Message `json:"message"`
	ConversationID string  `json:"conversationId"`
	Model          string  `json:"model"`
	Usage          Usage   `json:"usage"`
	FinishReason   string  `json:"finishReason,omitempty"`
}
