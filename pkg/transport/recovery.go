package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/chorus/pkg/api"
)

// Recovery converts a panic in the handler into a server error. The server
// keeps accepting requests afterwards.
func Recovery() Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (resp *api.QueryResponse, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in query handler",
						"request_id", RequestIDFromContext(ctx),
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
					resp = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Send(ctx, req)
		})
	}
}
