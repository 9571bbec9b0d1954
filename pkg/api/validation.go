package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for query validation.
type ValidationConfig struct {
	MaxModels     int
	MaxPromptSize int
	MaxTimeoutMs  int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxModels:     8,
		MaxPromptSize: 256 * 1024, // 256KB
		MaxTimeoutMs:  10 * 60 * 1000,
	}
}

// ValidateQuery checks the shape of a QueryRequest. It returns an *APIError
// describing the first validation failure, or nil if the request is valid.
// Model ids are checked for presence and uniqueness only; resolving them
// against the registry is the engine's job.
func ValidateQuery(req *QueryRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Prompt) == "" {
		return NewInvalidRequestError("prompt", "prompt must not be empty")
	}

	if cfg.MaxPromptSize > 0 && len(req.Prompt) > cfg.MaxPromptSize {
		return NewInvalidRequestError("prompt",
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxPromptSize))
	}

	if len(req.ModelIDs) == 0 {
		return NewInvalidRequestError("modelIds", "modelIds must contain at least one model")
	}

	if cfg.MaxModels > 0 && len(req.ModelIDs) > cfg.MaxModels {
		return NewInvalidRequestError("modelIds",
			fmt.Sprintf("modelIds exceeds maximum of %d models", cfg.MaxModels))
	}

	seen := make(map[string]struct{}, len(req.ModelIDs))
	for _, id := range req.ModelIDs {
		if strings.TrimSpace(id) == "" {
			return NewInvalidRequestError("modelIds", "model ids must not be empty")
		}
		if _, dup := seen[id]; dup {
			return &APIError{
				Type:    ErrorTypeInvalidRequest,
				Code:    CodeDuplicateModel,
				Param:   "modelIds",
				Message: fmt.Sprintf("model %q is listed more than once", id),
			}
		}
		seen[id] = struct{}{}
	}

	if req.TimeoutMs < 0 {
		return NewInvalidRequestError("timeoutMs", "timeoutMs must not be negative")
	}
	if cfg.MaxTimeoutMs > 0 && req.TimeoutMs > cfg.MaxTimeoutMs {
		return NewInvalidRequestError("timeoutMs",
			fmt.Sprintf("timeoutMs exceeds maximum of %d", cfg.MaxTimeoutMs))
	}

	if req.SessionID != "" && !ValidateSessionID(req.SessionID) {
		return NewInvalidRequestError("sessionId", "malformed session ID")
	}

	return nil
}
