// Package engine implements the multi-model query engine. The Engine
// validates a query, fans it out to one goroutine per model through a
// bounded in-flight pool, bounds every call by one shared deadline, and
// assembles the outcomes in request order. Send additionally persists the
// exchange to an optional transcript store.
package engine
