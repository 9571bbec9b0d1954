package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, scopes storage to the
// identity's owner, and optionally enforces rate limits.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeUnauthorized(w)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"tier", result.Identity.Tier(),
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.Tier(),
					)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.Tier()).Inc()
					w.Header().Set("Retry-After", "60")
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), result.Identity)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", "authentication required"),
		http.StatusUnauthorized,
	)
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
