// Package model defines data structures for the chat service.
package model

import (
	"time"
)

// Conversation is a user's multi-turn chat history.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title        string `json:"title"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// UpdateConversationRequest is the request to overwrite a conversation's title and/or messages.
// A nil field leaves the stored value untouched.
type UpdateConversationRequest struct {
	Title    *string    `json:"title,omitempty"`
	Messages *[]Message `json:"messages,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"hasMore"`
}

// DeleteConversationsResponse is the response for bulk deletion.
type DeleteConversationsResponse struct {
	Deleted int `json:"deleted"`
}
