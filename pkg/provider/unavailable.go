package provider

import (
	"context"

	"github.com/rhuss/chorus/pkg/api"
)

type unavailable struct {
	name   string
	reason string
}

// Unavailable returns an adapter that fails every call with
// ProviderUnavailable without touching the network. It stands in for a
// provider the catalog references but that has no credential configured.
func Unavailable(name, reason string) Adapter {
	return &unavailable{name: name, reason: reason}
}

func (u *unavailable) Name() string { return u.name }

func (u *unavailable) Invoke(_ context.Context, _ *Invocation) (string, error) {
	return "", &Error{Provider: u.name, Kind: api.ErrorKindProviderUnavailable, Detail: u.reason}
}

func (u *unavailable) Close() error { return nil }
