// Package mockbackend serves deterministic stand-ins for the OpenAI Chat
// Completions, Anthropic Messages and Gemini generateContent APIs.
//
// Prompt markers change the behavior:
//
//	[slow]       wait the configured delay before answering
//	[fail]       answer 500 with a provider-style error body
//	[ratelimit]  answer 429 with Retry-After
//	[empty]      answer 200 with no text
package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// behavior is what a prompt marker asks the mock to do.
type behavior int

const (
	behaveAnswer behavior = iota
	behaveSlow
	behaveFail
	behaveRateLimit
	behaveEmpty
)

func classify(prompt string) behavior {
	switch {
	case strings.Contains(prompt, "[fail]"):
		return behaveFail
	case strings.Contains(prompt, "[ratelimit]"):
		return behaveRateLimit
	case strings.Contains(prompt, "[empty]"):
		return behaveEmpty
	case strings.Contains(prompt, "[slow]"):
		return behaveSlow
	default:
		return behaveAnswer
	}
}

// Answer is the deterministic reply for a model and prompt.
func Answer(model, prompt string) string {
	return fmt.Sprintf("[%s] You asked: %s", model, strings.TrimSpace(prompt))
}

// errorWriter writes a provider-specific error body.
type errorWriter func(w http.ResponseWriter, status int, message string)

// api is one emulated provider surface.
type api struct {
	name       string
	writeError errorWriter
	writeReply func(w http.ResponseWriter, model, text string)
}

// NewHandler returns the mock API. Prompts marked [slow] wait slowDelay or
// until the client goes away.
func NewHandler(slowDelay time.Duration) http.Handler {
	openai := &api{name: "openai", writeError: openAIError, writeReply: openAIReply}
	anthropic := &api{name: "anthropic", writeError: anthropicError, writeReply: anthropicReply}
	gemini := &api{name: "gemini", writeError: geminiError, writeReply: geminiReply}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if !decode(w, r, &req, openai) {
			return
		}
		var prompt string
		for _, m := range req.Messages {
			if m.Role == "user" {
				prompt = contentText(m.Content)
			}
		}
		openai.respond(w, r, slowDelay, req.Model, prompt)
	})
	mux.HandleFunc("GET /v1/models", handleModels)

	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if !decode(w, r, &req, anthropic) {
			return
		}
		if r.Header.Get("anthropic-version") == "" {
			anthropic.writeError(w, http.StatusBadRequest, "anthropic-version header is required")
			return
		}
		var prompt string
		for _, m := range req.Messages {
			if m.Role == "user" {
				prompt = contentText(m.Content)
			}
		}
		anthropic.respond(w, r, slowDelay, req.Model, prompt)
	})

	mux.HandleFunc("POST /v1beta/models/{call}", func(w http.ResponseWriter, r *http.Request) {
		model, ok := strings.CutSuffix(r.PathValue("call"), ":generateContent")
		if !ok {
			gemini.writeError(w, http.StatusNotFound, "unsupported method")
			return
		}
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if !decode(w, r, &req, gemini) {
			return
		}
		var b strings.Builder
		for _, c := range req.Contents {
			for _, p := range c.Parts {
				b.WriteString(p.Text)
			}
		}
		gemini.respond(w, r, slowDelay, model, b.String())
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func decode(w http.ResponseWriter, r *http.Request, v any, a *api) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respond applies the prompt's marker and writes the reply.
func (a *api) respond(w http.ResponseWriter, r *http.Request, slowDelay time.Duration, model, prompt string) {
	b := classify(prompt)
	slog.Info("mock request", "api", a.name, "model", model, "behavior", b)

	switch b {
	case behaveFail:
		a.writeError(w, http.StatusInternalServerError, "mock upstream failure")
		return
	case behaveRateLimit:
		w.Header().Set("Retry-After", "1")
		a.writeError(w, http.StatusTooManyRequests, "mock rate limit exceeded")
		return
	case behaveEmpty:
		a.writeReply(w, model, "")
		return
	case behaveSlow:
		select {
		case <-time.After(slowDelay):
		case <-r.Context().Done():
			return
		}
	}
	a.writeReply(w, model, Answer(model, prompt))
}

// contentText accepts a string or an array of text blocks.
func contentText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func openAIReply(w http.ResponseWriter, model, text string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		"object": "chat.completion",
		"model":  model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
	})
}

func openAIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": "server_error"},
	})
}

func anthropicReply(w http.ResponseWriter, model, text string) {
	content := []map[string]any{}
	if text != "" {
		content = append(content, map[string]any{"type": "text", "text": text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          fmt.Sprintf("msg_mock_%d", time.Now().UnixNano()),
		"type":        "message",
		"role":        "assistant",
		"model":       model,
		"content":     content,
		"stop_reason": "end_turn",
	})
}

func anthropicError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "api_error", "message": message},
	})
}

func geminiReply(w http.ResponseWriter, model, text string) {
	parts := []map[string]any{}
	if text != "" {
		parts = append(parts, map[string]any{"text": text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": "STOP",
		}},
		"modelVersion": model,
	})
}

func geminiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message, "status": http.StatusText(status)},
	})
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "mock"},
		},
	})
}
