package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

type memoryRecord struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// MemoryStore keeps conversations in process. Records are held encoded, the
// same way a remote store returns them, and expire after the TTL like the
// Postgres store does.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	index   map[string]map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures optional MemoryStore behavior.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		records: make(map[string]*memoryRecord),
		index:   make(map[string]map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes a new conversation.
func (s *MemoryStore) Create(ctx context.Context, conv *model.Conversation) error {
	data, err := encodeConversation(conv)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(conv.UserID, conv.ID)] = &memoryRecord{
		data:      data,
		version:   1,
		expiresAt: s.now().Add(s.ttl),
	}
	s.userIndex(conv.UserID)[conv.ID] = conv.CreatedAt
	return nil
}

// Get returns a conversation.
func (s *MemoryStore) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, _, err := s.load(userID, id)
	return conv, err
}

// Append adds msgs to the end of the conversation in one conditional write.
func (s *MemoryStore) Append(ctx context.Context, userID, id string, msgs ...model.Message) (*model.Conversation, error) {
	return update(ctx,
		func() (*model.Conversation, int64, error) { return s.load(userID, id) },
		s.save,
		func(conv *model.Conversation) {
			conv.Messages = append(conv.Messages, msgs...)
			conv.UpdatedAt = s.now().UTC()
		},
	)
}

// Replace overwrites the title and/or the message list.
func (s *MemoryStore) Replace(ctx context.Context, userID, id string, title *string, messages *[]model.Message) (*model.Conversation, error) {
	return update(ctx,
		func() (*model.Conversation, int64, error) { return s.load(userID, id) },
		s.save,
		func(conv *model.Conversation) {
			if title != nil {
				conv.Title = *title
			}
			if messages != nil {
				conv.Messages = append([]model.Message{}, (*messages)...)
			}
			conv.UpdatedAt = s.now().UTC()
		},
	)
}

// Delete removes a conversation and its index entry.
func (s *MemoryStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(userID, id)
	rec, ok := s.records[key]
	existed := ok && s.now().Before(rec.expiresAt)

	delete(s.records, key)
	if idx, ok := s.index[userID]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(s.index, userID)
		}
	}
	return existed, nil
}

// List returns a page of the user's conversations, newest first.
func (s *MemoryStore) List(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	type entry struct {
		id    string
		score time.Time
	}

	idx := s.index[userID]
	entries := make([]entry, 0, len(idx))
	for id, score := range idx {
		rec, ok := s.records[recordKey(userID, id)]
		if !ok || !now.Before(rec.expiresAt) {
			// Index entries never outlive their record.
			delete(idx, id)
			delete(s.records, recordKey(userID, id))
			continue
		}
		entries = append(entries, entry{id: id, score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score.Equal(entries[j].score) {
			return entries[i].id > entries[j].id
		}
		return entries[i].score.After(entries[j].score)
	})

	page := &Page{Items: []model.Conversation{}, Total: len(entries)}
	if offset >= len(entries) {
		return page, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}

	for _, e := range entries[offset:end] {
		conv, err := decodeConversation(s.records[recordKey(userID, e.id)].data)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *conv)
	}
	return page, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// PurgeExpired drops records whose TTL has elapsed along with their index entries.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for userID, idx := range s.index {
		for id := range idx {
			key := recordKey(userID, id)
			if rec, ok := s.records[key]; !ok || !now.Before(rec.expiresAt) {
				delete(idx, id)
				if ok {
					delete(s.records, key)
					purged++
				}
			}
		}
		if len(idx) == 0 {
			delete(s.index, userID)
		}
	}
	return purged, nil
}

// put stores raw record bytes; tests use it to plant corrupt data.
func (s *MemoryStore) put(userID, id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(userID, id)] = &memoryRecord{data: data, version: 1, expiresAt: s.now().Add(s.ttl)}
	s.userIndex(userID)[id] = s.now()
}

func (s *MemoryStore) load(userID, id string) (*model.Conversation, int64, error) {
	s.mu.Lock()
	rec, ok := s.records[recordKey(userID, id)]
	if !ok || !s.now().Before(rec.expiresAt) {
		s.mu.Unlock()
		return nil, 0, model.ErrNotFound
	}
	data, version := rec.data, rec.version
	s.mu.Unlock()

	conv, err := decodeConversation(data)
	if err != nil {
		return nil, 0, err
	}
	return conv, version, nil
}

func (s *MemoryStore) save(conv *model.Conversation, version int64) (bool, error) {
	data, err := encodeConversation(conv)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey(conv.UserID, conv.ID)]
	if !ok || !s.now().Before(rec.expiresAt) {
		return false, model.ErrNotFound
	}
	if rec.version != version {
		return false, nil
	}

	rec.data = data
	rec.version++
	rec.expiresAt = s.now().Add(s.ttl)
	s.userIndex(conv.UserID)[conv.ID] = conv.UpdatedAt
	return true, nil
}

// userIndex returns the user's index, creating it. Callers hold s.mu.
func (s *MemoryStore) userIndex(userID string) map[string]time.Time {
	idx, ok := s.index[userID]
	if !ok {
		idx = make(map[string]time.Time)
		s.index[userID] = idx
	}
	return idx
}
