package transport

import (
	"context"

	"github.com/rhuss/chorus/pkg/api"
)

// QueryHandler runs a fan-out query and, when requested, persists it.
// The returned error is always request-level; per-model failures are
// reported inside the response.
type QueryHandler interface {
	Send(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error)
}

// QueryHandlerFunc adapts an ordinary function to QueryHandler.
type QueryHandlerFunc func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error)

// Send calls f(ctx, req).
func (f QueryHandlerFunc) Send(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
	return f(ctx, req)
}

// List defaults.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListOptions controls cursor pagination and ordering for list operations.
type ListOptions struct {
	After  string // Cursor: return items after this ID.
	Before string // Cursor: return items before this ID.
	Limit  int    // Maximum number of items (default 20, max 100).
	Order  string // "asc" or "desc".
}

// Normalize clamps Limit and fills Order with def when unset.
func (o ListOptions) Normalize(def string) ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Order != "asc" && o.Order != "desc" {
		o.Order = def
	}
	return o
}

// SessionList is a page of sessions.
type SessionList struct {
	Object  string         `json:"object"`
	Data    []*api.Session `json:"data"`
	HasMore bool           `json:"hasMore"`
	FirstID string         `json:"firstId,omitempty"`
	LastID  string         `json:"lastId,omitempty"`
}

// MessageList is a page of messages within one session.
type MessageList struct {
	Object  string         `json:"object"`
	Data    []*api.Message `json:"data"`
	HasMore bool           `json:"hasMore"`
	FirstID string         `json:"firstId,omitempty"`
	LastID  string         `json:"lastId,omitempty"`
}

// TranscriptStore persists chat sessions and their messages. Every
// operation is scoped to the owner carried in ctx (storage.SetOwner);
// sessions of other owners behave as if they did not exist.
type TranscriptStore interface {
	// CreateSession starts a new, empty session.
	CreateSession(ctx context.Context, title string) (*api.Session, error)

	// AppendMessage stores one exchange at the end of a session. Returns
	// storage.ErrNotFound if the session does not exist.
	AppendMessage(ctx context.Context, sessionID, prompt string, resp *api.AggregatedResponse) (*api.Message, error)

	// GetSession returns a session by ID.
	GetSession(ctx context.Context, id string) (*api.Session, error)

	// ListSessions returns sessions, most recently updated first by default.
	ListSessions(ctx context.Context, opts ListOptions) (*SessionList, error)

	// ListMessages returns the messages of a session in chronological
	// order by default.
	ListMessages(ctx context.Context, sessionID string, opts ListOptions) (*MessageList, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, id string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}
