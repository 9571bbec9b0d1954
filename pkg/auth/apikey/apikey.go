// Package apikey validates static API keys. Keys are stored only as
// SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/chorus/pkg/auth"
)

// HeaderName is the alternative header carrying a raw API key.
const HeaderName = "X-API-Key"

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates keys from the Authorization bearer token or the
// X-API-Key header.
type Authenticator struct {
	keys []keyEntry
}

// New creates an authenticator. Entries with an empty key are skipped.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Authenticate returns Yes for a known key, No for an unknown or empty
// one, and Abstain when the request carries no key at all.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key, present := extractKey(r)
	if !present {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if key == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(key))
	match := -1
	for i, entry := range a.keys {
		// Every entry is compared so timing does not reveal the position.
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := a.keys[match].identity
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}

func extractKey(r *http.Request) (string, bool) {
	if v := r.Header.Get(HeaderName); v != "" {
		return strings.TrimSpace(v), true
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token), true
	}
	return "", false
}
