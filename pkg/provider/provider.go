package provider

import (
	"context"
)

// Adapter invokes one model family on behalf of the dispatcher.
//
// Implementations must be safe for concurrent use and hold no per-call
// state. The request deadline travels in ctx; Invoke must return once it
// passes.
type Adapter interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Invoke sends the prompt to the model and returns its text answer.
	// Failures are reported as *Error so the caller can classify them.
	Invoke(ctx context.Context, inv *Invocation) (string, error)

	// Close releases idle connections.
	Close() error
}

// Invocation is a single model call.
type Invocation struct {
	ModelID string
	Prompt  string
}

// ModelInfo describes a model advertised by a backend.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelLister is implemented by adapters whose backend can enumerate models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
