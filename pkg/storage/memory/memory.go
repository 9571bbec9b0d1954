// Package memory provides an in-memory transcript store for tests and
// single-process deployments. Sessions are lost when the process exits.
// Optional LRU eviction bounds the number of sessions kept.
package memory

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/transport"
)

// entry holds a session and its messages.
type entry struct {
	session  api.Session
	messages []*api.Message
	touched  uint64        // store-wide sequence of the last write
	lruElem  *list.Element // position in the LRU list
}

// Store is an in-memory TranscriptStore with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
	seq     uint64
}

var _ transport.TranscriptStore = (*Store)(nil)

// New creates an in-memory store. With maxSize > 0 the least recently used
// session is evicted once the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// CreateSession starts a new session owned by the caller.
func (s *Store) CreateSession(ctx context.Context, title string) (*api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := api.NewSessionID()
	if _, exists := s.entries[id]; exists {
		return nil, storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	now := time.Now().Unix()
	s.seq++
	e := &entry{
		session: api.Session{
			ID:        id,
			Object:    "chat.session",
			Title:     title,
			Owner:     storage.GetOwner(ctx),
			CreatedAt: now,
			UpdatedAt: now,
		},
		touched: s.seq,
		lruElem: s.lruList.PushFront(id),
	}
	s.entries[id] = e

	sess := e.session
	return &sess, nil
}

// AppendMessage adds an exchange to the end of a session.
func (s *Store) AppendMessage(ctx context.Context, sessionID, prompt string, resp *api.AggregatedResponse) (*api.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msg := api.NewMessage(sessionID, prompt, resp)
	e.messages = append(e.messages, msg)
	e.session.UpdatedAt = msg.CreatedAt
	s.seq++
	e.touched = s.seq
	s.lruList.MoveToFront(e.lruElem)

	return copyMessage(msg), nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.lruList.MoveToFront(e.lruElem)

	sess := e.session
	return &sess, nil
}

// ListSessions returns the caller's sessions, most recently updated first
// unless opts.Order is "asc".
func (s *Store) ListSessions(ctx context.Context, opts transport.ListOptions) (*transport.SessionList, error) {
	opts = opts.Normalize("desc")

	s.mu.RLock()
	owner := storage.GetOwner(ctx)
	var matches []*entry
	for _, e := range s.entries {
		if e.session.Owner == owner {
			matches = append(matches, e)
		}
	}
	slices.SortFunc(matches, func(a, b *entry) int {
		if opts.Order == "asc" {
			return cmpUint(a.touched, b.touched)
		}
		return cmpUint(b.touched, a.touched)
	})

	page, hasMore := storage.Page(matches, func(e *entry) string { return e.session.ID }, opts)
	data := make([]*api.Session, 0, len(page))
	for _, e := range page {
		sess := e.session
		data = append(data, &sess)
	}
	s.mu.RUnlock()

	result := &transport.SessionList{Object: "list", Data: data, HasMore: hasMore}
	if len(data) > 0 {
		result.FirstID = data[0].ID
		result.LastID = data[len(data)-1].ID
	}
	return result, nil
}

// ListMessages returns a session's messages, oldest first unless
// opts.Order is "desc".
func (s *Store) ListMessages(ctx context.Context, sessionID string, opts transport.ListOptions) (*transport.MessageList, error) {
	opts = opts.Normalize("asc")

	s.mu.RLock()
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	msgs := slices.Clone(e.messages)
	s.mu.RUnlock()

	if opts.Order == "desc" {
		slices.Reverse(msgs)
	}
	page, hasMore := storage.Page(msgs, func(m *api.Message) string { return m.ID }, opts)

	data := make([]*api.Message, 0, len(page))
	for _, m := range page {
		data = append(data, copyMessage(m))
	}
	result := &transport.MessageList{Object: "list", Data: data, HasMore: hasMore}
	if len(data) > 0 {
		result.FirstID = data[0].ID
		result.LastID = data[len(data)-1].ID
	}
	return result, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored sessions across all owners.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lookup finds a session visible to the caller. Must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok || e.session.Owner != storage.GetOwner(ctx) {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// evictOldest removes the least recently used session.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}

// copyMessage returns a deep copy so callers cannot alter stored results.
func copyMessage(m *api.Message) *api.Message {
	c := *m
	c.Results = slices.Clone(m.Results)
	return &c
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
