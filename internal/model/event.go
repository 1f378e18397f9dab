package model

import (
	"time"
)

// StreamEventType tags a StreamEvent on the wire.
type StreamEventType string

const (
	StreamEventTextChunk StreamEventType = "text-chunk"
	StreamEventFinished  StreamEventType = "conversation-finished"
	StreamEventError     StreamEventType = "error"
)

// StreamEvent is one element of a generation's event sequence. Exactly one payload
// group is populated, selected by Type.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	ConversationID string          `json:"conversationId"`

	// text-chunk
	Content string `json:"content,omitempty"`

	// conversation-finished
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends a sequence.
func (e StreamEvent) Terminal() bool {
	return e.Type == StreamEventFinished || e.Type == StreamEventError
}

// TextChunk builds a text-chunk event.
func TextChunk(conversationID, content string) StreamEvent {
	return StreamEvent{Type: StreamEventTextChunk, ConversationID: conversationID, Content: content}
}

// Finished builds a conversation-finished event.
func Finished(conversationID string, usage Usage, finishReason string) StreamEvent {
	return StreamEvent{Type: StreamEventFinished, ConversationID: conversationID, Usage: &usage, FinishReason: finishReason}
}

// ErrorEvent builds an error event.
func ErrorEvent(conversationID, message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, ConversationID: conversationID, Error: message}
}

// EventType represents the type of a conversation lifecycle event.
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeAppended  EventType = "appended"
	EventTypeReplaced  EventType = "replaced"
	EventTypeDeleted   EventType = "deleted"
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
)

// ConversationEvent is published to the event bus when a conversation changes
// or a generation turn ends.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	UserID         string         `json:"userId"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
