package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rhuss/chorus/pkg/api"
)

// Error is a classified adapter failure.
type Error struct {
	Provider string
	Kind     api.ErrorKind
	Detail   string

	// Status is the HTTP status the backend answered with, if any.
	Status int

	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Rejected reports a backend that answered but refused or failed the call.
func Rejected(name string, status int, detail string) *Error {
	return &Error{Provider: name, Kind: api.ErrorKindProviderRejected, Status: status, Detail: detail}
}

// Malformed reports a response body that could not be decoded.
func Malformed(name string, err error) *Error {
	return &Error{Provider: name, Kind: api.ErrorKindProviderRejected, Detail: "malformed response", Err: err}
}

// EmptyResponse reports a successful call that produced no text.
func EmptyResponse(name string) *Error {
	return &Error{Provider: name, Kind: api.ErrorKindProviderRejected, Detail: "empty response"}
}

// TransportError classifies an error returned by http.Client.Do. A passed
// deadline, a cancelled context or a client timeout becomes Timeout;
// anything else means the backend could not be reached.
func TransportError(ctx context.Context, name string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Provider: name, Kind: api.ErrorKindTimeout, Detail: timeoutDetail(ctxErr), Err: err}
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Provider: name, Kind: api.ErrorKindTimeout, Detail: "deadline exceeded", Err: err}
	}
	return &Error{Provider: name, Kind: api.ErrorKindProviderUnavailable, Detail: fmt.Sprintf("backend connection error: %s", err), Err: err}
}

func timeoutDetail(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return "deadline exceeded"
}

// Classify extracts the outcome kind, detail and provider status from any
// error an adapter returned. Errors that are not *Error are treated as
// rejections, except context expiry which is always a timeout.
func Classify(err error) (api.ErrorKind, string, int) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, pe.Detail, pe.Status
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.ErrorKindTimeout, "deadline exceeded", 0
	}
	if errors.Is(err, context.Canceled) {
		return api.ErrorKindTimeout, "request cancelled", 0
	}
	return api.ErrorKindProviderRejected, err.Error(), 0
}
