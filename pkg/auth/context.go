package auth

import (
	"context"

	"github.com/rhuss/chorus/pkg/storage"
)

type callerKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// IdentityFromContext returns the caller's identity, or nil when
// authentication is disabled.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(callerKey{}).(*Identity)
	return id
}

// WithCaller binds id to ctx and scopes the transcript store to the
// identity's owner. A nil id leaves ctx unchanged.
func WithCaller(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return storage.SetOwner(SetIdentity(ctx, id), id.Owner())
}
