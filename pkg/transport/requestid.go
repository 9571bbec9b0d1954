package transport

import (
	"context"

	"github.com/rhuss/chorus/pkg/api"
)

// RequestID assigns a request ID to each query. An ID already in the
// context (set by the HTTP adapter from X-Request-ID) is kept when it is a
// valid UUID; otherwise a fresh UUID is generated, since the ID becomes the
// aggregated response's requestId.
func RequestID() Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
			if !api.ValidateRequestID(RequestIDFromContext(ctx)) {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.Send(ctx, req)
		})
	}
}
