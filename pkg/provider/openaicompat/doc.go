// Package openaicompat is the adapter for any backend that speaks the
// OpenAI Chat Completions protocol: OpenAI itself, OpenRouter, vLLM,
// LiteLLM and Ollama.
package openaicompat
