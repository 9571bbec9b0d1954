package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/chorus/pkg/api"
)

// Logging emits one structured entry per query: info on completion with
// the success count, error when the query was rejected or failed.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
			start := time.Now()

			resp, err := next.Send(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("models", len(req.ModelIDs)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "query failed", attrs...)
				return resp, err
			}

			attrs = append(attrs,
				slog.Int("succeeded", resp.Succeeded()),
				slog.Int64("elapsed_ms", resp.ElapsedMs),
			)
			if resp.Persistence != nil {
				attrs = append(attrs, slog.String("persistence", string(resp.Persistence.Status)))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "query completed", attrs...)
			return resp, nil
		})
	}
}
