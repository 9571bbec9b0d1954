// Package provider defines the adapter contract every model backend
// implements, the shared failure taxonomy adapters map their errors onto,
// and small helpers for JSON-over-HTTP backends.
//
// Concrete adapters live in subpackages: openaicompat (Chat Completions,
// including OpenAI, OpenRouter, vLLM, LiteLLM and Ollama), anthropic
// (Messages API) and gemini (generateContent).
package provider
