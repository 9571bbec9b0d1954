// Package storetest holds behavior checks shared by every
// transport.TranscriptStore implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/transport"
)

// Response builds an aggregated response with one success, one timeout
// and one rejection, in that order.
func Response(requestID string) *api.AggregatedResponse {
	rejected := api.Failure("deepseek/deepseek-r1:free", api.ErrorKindProviderRejected, "backend rate limit exceeded", 80*time.Millisecond)
	rejected.ProviderStatus = 429
	return &api.AggregatedResponse{
		RequestID: requestID,
		Results: []api.ModelOutcome{
			api.Success("gpt-4o-mini", "Paris.", 420*time.Millisecond),
			api.Failure("gemini-2.0-flash", api.ErrorKindTimeout, "deadline exceeded", 2*time.Second),
			rejected,
		},
		ElapsedMs: 2003,
		CreatedAt: time.Now().Unix(),
	}
}

// Run exercises store. Each subtest works under its own owner so a store
// shared across subtests stays isolated.
func Run(t *testing.T, store transport.TranscriptStore) {
	t.Helper()

	run := time.Now().UnixNano()
	n := 0
	owner := func(t *testing.T) context.Context {
		n++
		return storage.SetOwner(context.Background(), fmt.Sprintf("%s-%d-%d", t.Name(), run, n))
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		ctx := owner(t)
		sess, err := store.CreateSession(ctx, "capital cities")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if !api.ValidateSessionID(sess.ID) {
			t.Errorf("invalid session id %q", sess.ID)
		}
		got, err := store.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.Title != "capital cities" || got.Owner != storage.GetOwner(ctx) {
			t.Errorf("got %+v", got)
		}
		if got.Object != "chat.session" {
			t.Errorf("Object = %q", got.Object)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := store.GetSession(owner(t), "sess_000000000000000000000000")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AppendRoundTrip", func(t *testing.T) {
		ctx := owner(t)
		sess, _ := store.CreateSession(ctx, "t")
		resp := Response("9b2f4c1e-6a0d-4e3b-8f7a-1c2d3e4f5a6b")

		msg, err := store.AppendMessage(ctx, sess.ID, "capital of France?", resp)
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if !api.ValidateMessageID(msg.ID) {
			t.Errorf("invalid message id %q", msg.ID)
		}

		list, err := store.ListMessages(ctx, sess.ID, transport.ListOptions{})
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(list.Data) != 1 {
			t.Fatalf("len(Data) = %d, want 1", len(list.Data))
		}
		got := list.Data[0]
		if got.ID != msg.ID || got.SessionID != sess.ID || got.RequestID != resp.RequestID {
			t.Errorf("ids = %s/%s/%s", got.ID, got.SessionID, got.RequestID)
		}
		if got.Prompt != "capital of France?" {
			t.Errorf("Prompt = %q", got.Prompt)
		}
		if got.ResponseTimeMs != resp.ElapsedMs {
			t.Errorf("ResponseTimeMs = %d, want %d", got.ResponseTimeMs, resp.ElapsedMs)
		}
		if len(got.Results) != len(resp.Results) {
			t.Fatalf("len(Results) = %d, want %d", len(got.Results), len(resp.Results))
		}
		for i, want := range resp.Results {
			r := got.Results[i]
			if r.ModelID != want.ModelID || r.Status != want.Status || r.Content != want.Content || r.LatencyMs != want.LatencyMs {
				t.Errorf("Results[%d] = %+v, want %+v", i, r, want)
			}
			if r.Kind() != want.Kind() {
				t.Errorf("Results[%d].Kind() = %q, want %q", i, r.Kind(), want.Kind())
			}
		}
		if got.Results[2].ProviderStatus != 429 {
			t.Errorf("ProviderStatus = %d, want 429", got.Results[2].ProviderStatus)
		}
	})

	t.Run("AppendUnknownSession", func(t *testing.T) {
		_, err := store.AppendMessage(owner(t), "sess_000000000000000000000000", "x", Response("r"))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("OwnerScoping", func(t *testing.T) {
		alice, bob := owner(t), owner(t)
		sess, _ := store.CreateSession(alice, "private")

		if _, err := store.GetSession(bob, sess.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSession: expected ErrNotFound, got %v", err)
		}
		if _, err := store.AppendMessage(bob, sess.ID, "x", Response("r")); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("AppendMessage: expected ErrNotFound, got %v", err)
		}
		if _, err := store.ListMessages(bob, sess.ID, transport.ListOptions{}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("ListMessages: expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteSession(bob, sess.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeleteSession: expected ErrNotFound, got %v", err)
		}
		list, err := store.ListSessions(bob, transport.ListOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if len(list.Data) != 0 {
			t.Errorf("bob sees %d sessions", len(list.Data))
		}
		if _, err := store.GetSession(alice, sess.ID); err != nil {
			t.Errorf("owner lost access: %v", err)
		}
	})

	t.Run("ListSessionsPaging", func(t *testing.T) {
		ctx := owner(t)
		var ids []string
		for i := range 4 {
			sess, err := store.CreateSession(ctx, fmt.Sprintf("chat %d", i))
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, sess.ID)
		}
		if _, err := store.AppendMessage(ctx, ids[0], "again", Response("r")); err != nil {
			t.Fatal(err)
		}
		want := []string{ids[0], ids[3], ids[2], ids[1]}

		first, err := store.ListSessions(ctx, transport.ListOptions{Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		if !first.HasMore || len(first.Data) != 3 {
			t.Fatalf("first page: %d items, hasMore=%v", len(first.Data), first.HasMore)
		}
		for i, sess := range first.Data {
			if sess.ID != want[i] {
				t.Errorf("Data[%d] = %s, want %s", i, sess.ID, want[i])
			}
		}

		rest, err := store.ListSessions(ctx, transport.ListOptions{After: first.LastID, Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		if rest.HasMore || len(rest.Data) != 1 || rest.Data[0].ID != want[3] {
			t.Errorf("second page = %+v", rest)
		}

		asc, _ := store.ListSessions(ctx, transport.ListOptions{Order: "asc"})
		if asc.FirstID != ids[1] || asc.LastID != ids[0] {
			t.Errorf("asc = [%s..%s], want [%s..%s]", asc.FirstID, asc.LastID, ids[1], ids[0])
		}

		unknown, err := store.ListSessions(ctx, transport.ListOptions{After: "sess_000000000000000000000000"})
		if err != nil {
			t.Fatal(err)
		}
		if len(unknown.Data) != 0 || unknown.HasMore {
			t.Errorf("unknown cursor returned %d items", len(unknown.Data))
		}
	})

	t.Run("ListMessagesOrder", func(t *testing.T) {
		ctx := owner(t)
		sess, _ := store.CreateSession(ctx, "t")
		var ids []string
		for i := range 3 {
			msg, err := store.AppendMessage(ctx, sess.ID, fmt.Sprintf("q%d", i), Response(fmt.Sprintf("r%d", i)))
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, msg.ID)
		}

		asc, err := store.ListMessages(ctx, sess.ID, transport.ListOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if asc.FirstID != ids[0] || asc.LastID != ids[2] {
			t.Errorf("asc = [%s..%s]", asc.FirstID, asc.LastID)
		}

		desc, _ := store.ListMessages(ctx, sess.ID, transport.ListOptions{Order: "desc", Limit: 2})
		if desc.FirstID != ids[2] || desc.LastID != ids[1] || !desc.HasMore {
			t.Errorf("desc = [%s..%s] hasMore=%v", desc.FirstID, desc.LastID, desc.HasMore)
		}

		after, _ := store.ListMessages(ctx, sess.ID, transport.ListOptions{After: ids[0]})
		if len(after.Data) != 2 || after.FirstID != ids[1] {
			t.Errorf("after = %d items from %s", len(after.Data), after.FirstID)
		}

		before, _ := store.ListMessages(ctx, sess.ID, transport.ListOptions{Before: ids[2]})
		if len(before.Data) != 2 || before.LastID != ids[1] {
			t.Errorf("before = %d items to %s", len(before.Data), before.LastID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := owner(t)
		sess, _ := store.CreateSession(ctx, "t")
		if _, err := store.AppendMessage(ctx, sess.ID, "q", Response("r")); err != nil {
			t.Fatal(err)
		}
		if err := store.DeleteSession(ctx, sess.ID); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		if _, err := store.GetSession(ctx, sess.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteSession(ctx, sess.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		if err := store.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck: %v", err)
		}
	})
}
