// Package store persists conversations with a per-user recency index and a
// sliding retention window.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// DefaultTTL is how long a conversation survives without writes.
const DefaultTTL = 30 * 24 * time.Hour

// maxUpdateAttempts bounds the optimistic retry loop of Append and Replace.
const maxUpdateAttempts = 3

// ErrConflict is returned when a conditional write kept losing to concurrent writers.
var ErrConflict = errors.New("conversation was modified concurrently")

// Page is one slice of a user's conversations, newest first.
type Page struct {
	Items []model.Conversation
	Total int
}

// HasMore reports whether conversations exist past this page.
func (p *Page) HasMore(limit, offset int) bool {
	return offset+limit < p.Total
}

// Store is the conversation persistence contract. Every operation is scoped to
// a user; ids of other users are indistinguishable from missing ones.
type Store interface {
	// Create writes a new conversation and indexes it at its creation time.
	Create(ctx context.Context, conv *model.Conversation) error
	// Get returns model.ErrNotFound for missing or expired conversations.
	Get(ctx context.Context, userID, id string) (*model.Conversation, error)
	// Append adds msgs, in order, to the end of the conversation in a single
	// write and refreshes its TTL and recency.
	Append(ctx context.Context, userID, id string, msgs ...model.Message) (*model.Conversation, error)
	// Replace overwrites the title and/or message list. Nil arguments are left untouched.
	Replace(ctx context.Context, userID, id string, title *string, messages *[]model.Message) (*model.Conversation, error)
	// Delete removes the record and its index entry, reporting whether it existed.
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List returns conversations newest first.
	List(ctx context.Context, userID string, limit, offset int) (*Page, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Unconfigured is the store used when no backend is set up. Every operation
// fails with model.ErrStoreUnavailable so callers can degrade.
type Unconfigured struct{}

var _ Store = Unconfigured{}

func (Unconfigured) Create(context.Context, *model.Conversation) error {
	return model.ErrStoreUnavailable
}

func (Unconfigured) Get(context.Context, string, string) (*model.Conversation, error) {
	return nil, model.ErrStoreUnavailable
}

func (Unconfigured) Append(context.Context, string, string, ...model.Message) (*model.Conversation, error) {
	return nil, model.ErrStoreUnavailable
}

func (Unconfigured) Replace(context.Context, string, string, *string, *[]model.Message) (*model.Conversation, error) {
	return nil, model.ErrStoreUnavailable
}

func (Unconfigured) Delete(context.Context, string, string) (bool, error) {
	return false, model.ErrStoreUnavailable
}

func (Unconfigured) List(context.Context, string, int, int) (*Page, error) {
	return nil, model.ErrStoreUnavailable
}

func (Unconfigured) Ping(context.Context) error {
	return model.ErrStoreUnavailable
}

// recordKey names a conversation record. Scoping by user happens here, so a
// foreign id simply does not resolve.
func recordKey(userID, id string) string {
	return fmt.Sprintf("conversation:%s:%s", userID, id)
}

// encodeMessages serializes a message list; nil encodes as an empty array.
func encodeMessages(messages []model.Message) ([]byte, error) {
	if messages == nil {
		messages = []model.Message{}
	}
	return json.Marshal(messages)
}

// decodeMessages strictly decodes a stored message list.
func decodeMessages(raw []byte) ([]model.Message, error) {
	var messages []model.Message
	if err := strictUnmarshal(raw, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		return nil, fmt.Errorf("%w: messages is not an array", model.ErrCorruptRecord)
	}
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has role %q", model.ErrCorruptRecord, i, msg.Role)
		}
	}
	return messages, nil
}

// encodeConversation serializes a full conversation record.
func encodeConversation(conv *model.Conversation) ([]byte, error) {
	c := *conv
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	return json.Marshal(&c)
}

// decodeConversation strictly decodes a full conversation record.
func decodeConversation(raw []byte) (*model.Conversation, error) {
	var conv model.Conversation
	if err := strictUnmarshal(raw, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" || conv.UserID == "" {
		return nil, fmt.Errorf("%w: missing id or owner", model.ErrCorruptRecord)
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	for i, msg := range conv.Messages {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has role %q", model.ErrCorruptRecord, i, msg.Role)
		}
	}
	return &conv, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCorruptRecord, err)
	}
	return nil
}

// A loadFunc reads a conversation with its version. A saveFunc writes it back
// only if the version is unchanged and reports whether the write happened.
type (
	loadFunc func() (*model.Conversation, int64, error)
	saveFunc func(conv *model.Conversation, version int64) (bool, error)
)

// update runs a read-modify-write with a conditional save, retrying when a
// concurrent writer bumped the version in between.
func update(ctx context.Context, load loadFunc, save saveFunc, mutate func(*model.Conversation)) (*model.Conversation, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conv, version, err := load()
		if err != nil {
			return nil, err
		}

		mutate(conv)

		saved, err := save(conv, version)
		if err != nil {
			return nil, err
		}
		if saved {
			return conv, nil
		}
	}
	return nil, ErrConflict
}
