// Package noop provides an authenticator that accepts all requests as the
// anonymous caller. Used for development and local single-user setups.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/chorus/pkg/auth"
)

// Authenticator always returns Yes with the anonymous identity.
type Authenticator struct {
	// Tier is the service tier granted. Empty means auth.TierDefault.
	Tier string
}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	tier := a.Tier
	if tier == "" {
		tier = auth.TierDefault
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     auth.AnonymousSubject,
			ServiceTier: tier,
		},
	}
}
