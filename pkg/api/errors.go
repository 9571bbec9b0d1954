package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// Error codes carried in APIError.Code.
const (
	CodeUnknownModel          = "unknown_model"
	CodeDuplicateModel        = "duplicate_model"
	CodeIncompleteAggregation = "incomplete_aggregation"
	CodeModelNotEntitled      = "model_not_entitled"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Kind maps the error onto the outcome taxonomy used in logs and metrics.
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.Code == CodeUnknownModel:
		return ErrorKindUnknownModel
	case e.Code == CodeIncompleteAggregation:
		return ErrorKindIncompleteAggregation
	case e.Type == ErrorTypeInvalidRequest:
		return ErrorKindInvalidRequest
	default:
		return ""
	}
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewUnknownModelError creates an APIError for a model id the registry cannot resolve.
func NewUnknownModelError(modelID string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeUnknownModel,
		Param:   "modelIds",
		Message: fmt.Sprintf("unknown model %q", modelID),
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewForbiddenError creates an APIError for a caller that may not use a resource.
func NewForbiddenError(code, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}
