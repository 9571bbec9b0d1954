// Package api defines the core data types for the chorus multi-model query
// gateway.
//
// This package provides the request and result types shared by the engine,
// the provider adapters, the transcript stores and the HTTP transport:
// queries, per-model outcomes, aggregated responses, chat sessions and
// messages, the outcome error taxonomy, structured API errors, request
// validation and ID generation.
//
// The package depends only on the standard library and github.com/google/uuid
// and performs no I/O.
//
// Core types:
//   - [QueryRequest]: one prompt fanned out to an ordered list of models
//   - [ModelOutcome]: the terminal success or typed failure of one model call
//   - [AggregatedResponse]: outcomes in request order plus elapsed time
//   - [Session], [Message]: the persisted transcript
//   - [APIError]: structured request-level error with type, code, param, and message
package api
