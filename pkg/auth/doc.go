// Package auth authenticates callers of the query gateway and decides
// which models they may use.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// The HTTP middleware injects the identity into the request context, scopes
// transcript storage to the identity's subject and applies per-subject rate
// limits by service tier. Model entitlement is checked by the transport
// before a query reaches the engine.
package auth
