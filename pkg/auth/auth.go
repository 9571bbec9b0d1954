package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// Service tiers.
const (
	// TierFree may only query models marked free in the catalog.
	TierFree = "free"

	// TierDefault applies when an identity carries no tier.
	TierDefault = "default"
)

// AnonymousSubject is the subject assigned when every authenticator abstains
// and the chain accepts by default.
const AnonymousSubject = "anonymous"

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// ServiceTier determines rate limits and model entitlement.
	ServiceTier string

	// Scopes lists the authorization scopes granted.
	Scopes []string

	// Metadata carries auth-provider-specific data.
	Metadata map[string]string
}

// Tier returns the service tier, or TierDefault when unset.
func (id *Identity) Tier() string {
	if id == nil || id.ServiceTier == "" {
		return TierDefault
	}
	return id.ServiceTier
}

// Owner returns the storage owner for this identity. Anonymous callers
// share the empty owner.
func (id *Identity) Owner() string {
	if id == nil || id.Subject == AnonymousSubject {
		return ""
	}
	return id.Subject
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Use Yes for development or No for production.
	DefaultDecision AuthDecision

	// DefaultTier is the tier of the anonymous identity granted by a Yes
	// default. Empty means TierDefault.
	DefaultTier string
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		tier := c.DefaultTier
		if tier == "" {
			tier = TierDefault
		}
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, ServiceTier: tier},
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
