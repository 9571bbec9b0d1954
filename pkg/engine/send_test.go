package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/storage/memory"
	"github.com/rhuss/chorus/pkg/transport"
)

// brokenStore fails every write.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) CreateSession(context.Context, string) (*api.Session, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) AppendMessage(context.Context, string, string, *api.AggregatedResponse) (*api.Message, error) {
	return nil, errors.New("connection refused")
}

func boolPtr(b bool) *bool { return &b }

func TestSend_Persistence(t *testing.T) {
	tests := []struct {
		name       string
		store      func(t *testing.T) transport.TranscriptStore
		req        func(store transport.TranscriptStore) *api.QueryRequest
		wantStatus api.PersistStatus
		wantError  string
	}{
		{
			name:  "new session",
			store: func(*testing.T) transport.TranscriptStore { return memory.New(0) },
			req: func(transport.TranscriptStore) *api.QueryRequest {
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1", "m2"}}
			},
			wantStatus: api.PersistSaved,
		},
		{
			name: "existing session",
			store: func(t *testing.T) transport.TranscriptStore {
				s := memory.New(0)
				if _, err := s.CreateSession(context.Background(), "earlier"); err != nil {
					t.Fatal(err)
				}
				return s
			},
			req: func(store transport.TranscriptStore) *api.QueryRequest {
				list, _ := store.ListSessions(context.Background(), transport.ListOptions{})
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}, SessionID: list.FirstID}
			},
			wantStatus: api.PersistSaved,
		},
		{
			name:  "persist disabled",
			store: func(*testing.T) transport.TranscriptStore { return memory.New(0) },
			req: func(transport.TranscriptStore) *api.QueryRequest {
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}, Persist: boolPtr(false)}
			},
			wantStatus: api.PersistSkipped,
		},
		{
			name:  "no store",
			store: func(*testing.T) transport.TranscriptStore { return nil },
			req: func(transport.TranscriptStore) *api.QueryRequest {
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}}
			},
			wantStatus: api.PersistSkipped,
		},
		{
			name:  "unknown session",
			store: func(*testing.T) transport.TranscriptStore { return memory.New(0) },
			req: func(transport.TranscriptStore) *api.QueryRequest {
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}, SessionID: "sess_doesnotexist000000000000"}
			},
			wantStatus: api.PersistFailed,
			wantError:  "session not found",
		},
		{
			name:  "store down",
			store: func(*testing.T) transport.TranscriptStore { return brokenStore{memory.New(0)} },
			req: func(transport.TranscriptStore) *api.QueryRequest {
				return &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1", "m2"}}
			},
			wantStatus: api.PersistFailed,
			wantError:  "transcript store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store(t)
			e := newTestEngine(t, &fakeAdapter{name: "fake"}, store, Config{})
			req := tt.req(store)

			resp, err := e.Send(context.Background(), req)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if len(resp.Results) != len(req.ModelIDs) {
				t.Fatalf("got %d results, want %d", len(resp.Results), len(req.ModelIDs))
			}
			for _, r := range resp.Results {
				if !r.OK() {
					t.Errorf("%s failed: %+v", r.ModelID, r.Error)
				}
			}
			if resp.Persistence == nil {
				t.Fatal("Persistence is nil")
			}
			if resp.Persistence.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Persistence.Status, tt.wantStatus)
			}
			if resp.Persistence.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", resp.Persistence.Error, tt.wantError)
			}
			if tt.wantStatus == api.PersistSaved {
				if resp.Persistence.MessageID == "" || resp.Persistence.SessionID == "" {
					t.Errorf("saved without ids: %+v", resp.Persistence)
				}
				if req.SessionID != "" && resp.Persistence.SessionID != req.SessionID {
					t.Errorf("SessionID = %q, want %q", resp.Persistence.SessionID, req.SessionID)
				}
			}
		})
	}
}

func TestSend_NewSessionTitledFromPrompt(t *testing.T) {
	store := memory.New(0)
	e := newTestEngine(t, &fakeAdapter{name: "fake"}, store, Config{})

	resp, err := e.Send(context.Background(), &api.QueryRequest{
		Prompt:   "  Compare   the\ttwo approaches  ",
		ModelIDs: []string{"m1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := store.GetSession(context.Background(), resp.Persistence.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Title != "Compare the two approaches" {
		t.Errorf("Title = %q", sess.Title)
	}
}

func TestSend_StoredMessageMatchesResponse(t *testing.T) {
	store := memory.New(0)
	fake := &fakeAdapter{name: "fake", behaviors: map[string]behavior{
		"m1": reply("slow", 30*time.Millisecond),
		"m2": hang(),
	}}
	e := newTestEngine(t, fake, store, Config{})
	ctx := storage.SetOwner(context.Background(), "alice")

	resp, err := e.Send(ctx, &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m2", "m1", "m3"}, TimeoutMs: 100})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Persistence.Status != api.PersistSaved {
		t.Fatalf("Persistence = %+v", resp.Persistence)
	}

	list, err := store.ListMessages(ctx, resp.Persistence.SessionID, transport.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("stored %d messages, want 1", len(list.Data))
	}
	msg := list.Data[0]
	if msg.RequestID != resp.RequestID {
		t.Errorf("RequestID = %q, want %q", msg.RequestID, resp.RequestID)
	}
	if msg.ResponseTimeMs != resp.ElapsedMs {
		t.Errorf("ResponseTimeMs = %d, want %d", msg.ResponseTimeMs, resp.ElapsedMs)
	}
	for i := range resp.Results {
		if msg.Results[i].ModelID != resp.Results[i].ModelID || msg.Results[i].Status != resp.Results[i].Status {
			t.Errorf("Results[%d] = %+v, want %+v", i, msg.Results[i], resp.Results[i])
		}
	}
	if msg.Results[0].Kind() != api.ErrorKindTimeout {
		t.Errorf("m2 kind = %q, want Timeout", msg.Results[0].Kind())
	}

	// Another owner cannot see the session.
	if _, err := store.GetSession(context.Background(), resp.Persistence.SessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("anonymous caller sees alice's session: %v", err)
	}
}

func TestSend_SurvivesClientCancel(t *testing.T) {
	store := memory.New(0)
	e := newTestEngine(t, &fakeAdapter{name: "fake"}, store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := e.Run(ctx, &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}})
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	p := e.persist(ctx, &api.QueryRequest{Prompt: "hi", ModelIDs: []string{"m1"}}, resp)
	if p.Status != api.PersistSaved {
		t.Errorf("persist after cancel = %+v, want saved", p)
	}
}
