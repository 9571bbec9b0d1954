// Package storage holds what the transcript store implementations share:
// sentinel errors, owner scoping through the context, and session title
// derivation.
//
// The stores (memory, postgres, sqlite) implement transport.TranscriptStore.
package storage
