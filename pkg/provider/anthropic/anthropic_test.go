package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
)

func TestInvoke_ConcatenatesTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key-1" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != APIVersion {
			t.Errorf("anthropic-version = %q", got)
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.MaxTokens != DefaultMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, DefaultMaxTokens)
		}
		if req.Model != "claude-test" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request %+v", req)
		}

		w.Write([]byte(`{"id":"msg_1","type":"message","content":[{"type":"thinking"},{"type":"text","text":"Hel"},{"type":"text","text":"lo"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "key-1"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	got, err := c.Invoke(context.Background(), &provider.Invocation{ModelID: "claude-test", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "Hello" {
		t.Errorf("content = %q, want %q", got, "Hello")
	}
	if c.Name() != "anthropic" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestInvoke_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantStatus int
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "Overloaded", 529},
		{"bad request", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}`, "max_tokens: too large", 400},
		{"refusal", 200, `{"content":[],"stop_reason":"refusal"}`, "model refused to answer", 0},
		{"empty", 200, `{"content":[{"type":"text","text":""}],"stop_reason":"end_turn"}`, "empty response", 0},
		{"malformed", 200, `<html>`, "malformed response", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL, APIKey: "k"})
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Invoke(context.Background(), &provider.Invocation{ModelID: "m", Prompt: "p"})
			var pe *provider.Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *provider.Error, got %v", err)
			}
			if pe.Kind != api.ErrorKindProviderRejected || pe.Detail != tt.wantDetail || pe.Status != tt.wantStatus {
				t.Errorf("got %s %q %d, want ProviderRejected %q %d", pe.Kind, pe.Detail, pe.Status, tt.wantDetail, tt.wantStatus)
			}
		})
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without APIKey")
	}
}
