package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/auth"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/transport"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Adapter serves the query gateway API over HTTP.
type Adapter struct {
	handler transport.QueryHandler
	catalog *registry.Registry
	store   transport.TranscriptStore // nil disables the session endpoints
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// Protect wraps every API route, typically with auth.Middleware.
	// Health, readiness and metrics endpoints are never wrapped.
	Protect func(http.Handler) http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter. The store is optional; without one
// the session endpoints answer 501. Middleware is applied to the query
// handler in the given order.
func NewAdapter(handler transport.QueryHandler, catalog *registry.Registry, store transport.TranscriptStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		handler: handler,
		catalog: catalog,
		store:   store,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.route("POST /query", a.handleQuery)
	a.route("GET /models", a.handleListModels)
	a.route("POST /sessions", a.handleCreateSession)
	a.route("GET /sessions", a.handleListSessions)
	a.route("GET /sessions/{id}", a.handleGetSession)
	a.route("GET /sessions/{id}/messages", a.handleListMessages)
	a.route("DELETE /sessions/{id}", a.handleDeleteSession)

	return a
}

func (a *Adapter) route(pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if a.config.Protect != nil {
		handler = a.config.Protect(handler)
	}
	a.mux.Handle(pattern, handler)
}

// Handle mounts an additional handler, such as a health or metrics
// endpoint, on the adapter's mux without the Protect wrapper.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter, with request ID
// propagation and HTTP metrics applied.
func (a *Adapter) Handler() http.Handler {
	return requestIDMiddleware(observability.MetricsMiddleware(a.mux))
}

// requestIDMiddleware keeps a client-supplied X-Request-ID when it is a
// valid UUID and generates one otherwise. The ID is echoed in the
// response headers and becomes the aggregated response's requestId.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !api.ValidateRequestID(id) {
			id = api.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleQuery handles POST /query.
func (a *Adapter) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	if apiErr := auth.CheckModels(r.Context(), a.catalog, req.ModelIDs); apiErr != nil {
		slog.Warn("model entitlement denied",
			"request_id", transport.RequestIDFromContext(r.Context()),
			"subject", auth.IdentityFromContext(r.Context()).Owner(),
			"error", apiErr.Message,
		)
		transport.WriteAPIError(w, apiErr)
		return
	}

	resp, err := a.handler.Send(r.Context(), &req)
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type modelList struct {
	Object string                     `json:"object"`
	Data   []registry.ModelDescriptor `json:"data"`
}

// handleListModels handles GET /models. With ?free=true only free models
// are listed.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	data := a.catalog.List()
	if free, _ := strconv.ParseBool(r.URL.Query().Get("free")); free {
		data = a.catalog.ListFree()
	}
	writeJSON(w, http.StatusOK, modelList{Object: "list", Data: data})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

// handleCreateSession handles POST /sessions.
func (a *Adapter) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}

	var req createSessionRequest
	if r.ContentLength != 0 {
		if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
			transport.WriteErrorResponse(w, apiErr, status)
			return
		}
	}

	sess, err := a.store.CreateSession(r.Context(), storage.TitleFromPrompt(req.Title))
	if err != nil {
		a.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleListSessions handles GET /sessions.
func (a *Adapter) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := a.store.ListSessions(r.Context(), opts)
	if err != nil {
		a.writeStoreError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetSession handles GET /sessions/{id}.
func (a *Adapter) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := a.store.GetSession(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleListMessages handles GET /sessions/{id}/messages.
func (a *Adapter) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := a.store.ListMessages(r.Context(), id, opts)
	if err != nil {
		a.writeStoreError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteSession handles DELETE /sessions/{id}.
func (a *Adapter) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteSession(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionID checks that a store is configured and the path id is well
// formed. It writes the error response itself and reports false on failure.
func (a *Adapter) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !a.requireStore(w) {
		return "", false
	}
	id := r.PathValue("id")
	if !api.ValidateSessionID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed session ID"))
		return "", false
	}
	return id, true
}

func (a *Adapter) requireStore(w http.ResponseWriter) bool {
	if a.store != nil {
		return true
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", "sessions are not available (no store configured)"),
		http.StatusNotImplemented,
	)
	return false
}

func (a *Adapter) writeStoreError(w http.ResponseWriter, r *http.Request, err error, sessionID string) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("session "+sessionID+" not found"))
		return
	}
	slog.Error("transcript store error",
		"request_id", transport.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
	transport.WriteAPIError(w, transport.AsAPIError(err))
}

// decodeJSON reads a size-limited JSON body into v. On failure it returns
// the error to write and its status.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) (*api.APIError, int) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()), http.StatusBadRequest
	}
	return nil, 0
}

// parseListOptions extracts pagination parameters from the query string.
// Limits above the maximum are clamped by the store.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Order:  strings.ToLower(q.Get("order")),
	}

	if opts.After != "" && opts.Before != "" {
		return opts, api.NewInvalidRequestError("after", "cannot use both 'after' and 'before' cursors")
	}
	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
