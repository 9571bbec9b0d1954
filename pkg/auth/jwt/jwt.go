// Package jwt provides a JWT/OIDC authenticator that validates RSA-signed
// bearer tokens against a JWKS (JSON Web Key Set) endpoint and reads the
// caller's service tier from a configurable claim.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/chorus/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// JWKSURL is the URL of the key set used for signature verification.
	JWKSURL string

	// UserClaim names the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TierClaim names the claim carrying the service tier. Default: "tier".
	TierClaim string

	// DefaultTier applies when the token has no tier claim. Default: auth.TierDefault.
	DefaultTier string

	// ScopesClaim names the claim with authorization scopes, either a
	// space-separated string or a JSON array. Default: "scope".
	ScopesClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the key set. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.DefaultTier == "" {
		c.DefaultTier = auth.TierDefault
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	keys   *jwksCache
}

// New creates a JWT authenticator.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		config: cfg,
		keys:   newJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient),
	}
}

// Authenticate abstains without a bearer token, and votes No for a token
// that fails verification or lacks a subject.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr = strings.TrimSpace(tokenStr); tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(token *jwtlib.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return a.keys.getKey(ctx, kid)
	}, a.parserOptions()...)
	if err != nil || !token.Valid {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	tier := claimString(claims, a.config.TierClaim)
	if tier == "" {
		tier = a.config.DefaultTier
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: tier,
			Scopes:      extractScopes(claims, a.config.ScopesClaim),
		},
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(30 * time.Second),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}

// claimString returns a string claim, or "" when missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes accepts a space-separated string or a JSON array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	var scopes []string
	switch v := claims[key].(type) {
	case string:
		scopes = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
	}
	if len(scopes) == 0 {
		return nil
	}
	return scopes
}
