// Package transport defines the contracts between the HTTP layer and the
// query engine, the transcript store interface, and the middleware chain
// applied to every query.
//
// # Handler Interfaces
//
//   - QueryHandler runs one fan-out query and reports the persistence
//     result alongside the aggregated answers.
//   - TranscriptStore persists sessions and their append-only messages.
//
// # Middleware
//
// Middleware wraps a QueryHandler with cross-cutting behavior. The built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID)
// and structured logging via log/slog.
package transport
