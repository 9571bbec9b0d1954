package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/debug"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/transport"
)

// Engine runs fan-out queries. It implements transport.QueryHandler and is
// safe for concurrent use; the only state shared between queries is the
// in-flight pool.
type Engine struct {
	catalog   *registry.Registry
	providers *provider.Set
	store     transport.TranscriptStore
	cfg       Config
	pool      *pool
}

var _ transport.QueryHandler = (*Engine)(nil)

// New creates an Engine. The catalog and provider set are required; the
// store can be nil, in which case nothing is persisted.
func New(catalog *registry.Registry, providers *provider.Set, store transport.TranscriptStore, cfg Config) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("engine: catalog must not be nil")
	}
	if providers == nil {
		return nil, fmt.Errorf("engine: provider set must not be nil")
	}
	cfg = cfg.withDefaults()
	return &Engine{
		catalog:   catalog,
		providers: providers,
		store:     store,
		cfg:       cfg,
		pool:      newPool(cfg.MaxInFlight),
	}, nil
}

// Catalog returns the model registry the engine resolves against.
func (e *Engine) Catalog() *registry.Registry { return e.catalog }

// Store returns the transcript store, or nil.
func (e *Engine) Store() transport.TranscriptStore { return e.store }

// Ready reports whether the engine's dependencies are usable.
func (e *Engine) Ready(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.HealthCheck(ctx)
}

// Run validates req, invokes every requested model concurrently and returns
// one outcome per model in request order. The returned error is non-nil
// only for request-level failures (validation, unknown model) and internal
// invariant violations; per-model failures live in the outcomes.
func (e *Engine) Run(ctx context.Context, req *api.QueryRequest) (*api.AggregatedResponse, error) {
	if apiErr := api.ValidateQuery(req, e.cfg.validation()); apiErr != nil {
		observability.QueriesTotal.WithLabelValues(observability.QueryStatusRejected).Inc()
		return nil, apiErr
	}

	targets, err := e.resolve(req.ModelIDs)
	if err != nil {
		observability.QueriesTotal.WithLabelValues(observability.QueryStatusRejected).Inc()
		return nil, err
	}

	requestID := transport.RequestIDFromContext(ctx)
	if !api.ValidateRequestID(requestID) {
		requestID = api.NewRequestID()
	}

	start := time.Now()
	deadline := e.deadlineFor(req, start)
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	observability.QueryFanout.Observe(float64(len(targets)))
	debug.Log("engine", "dispatching query",
		"request_id", requestID,
		"models", req.ModelIDs,
		"deadline", time.Until(deadline),
	)

	slots := e.dispatch(dctx, requestID, req.Prompt, targets)

	outcomes := make(map[string]api.ModelOutcome, len(slots))
	finish := start
	for i, s := range slots {
		outcomes[targets[i].modelID] = s.outcome
		if s.arrived.After(finish) {
			finish = s.arrived
		}
	}

	resp, err := Assemble(requestID, req.ModelIDs, outcomes, start, finish)
	if err != nil {
		slog.Error("aggregation failed", "request_id", requestID, "error", err)
		observability.QueriesTotal.WithLabelValues(observability.QueryStatusError).Inc()
		return nil, &api.APIError{
			Type:    api.ErrorTypeServerError,
			Code:    api.CodeIncompleteAggregation,
			Message: "internal server error",
		}
	}

	observability.QueriesTotal.WithLabelValues(queryStatus(resp)).Inc()
	debug.Log("engine", "query assembled",
		"request_id", requestID,
		"succeeded", resp.Succeeded(),
		"elapsed_ms", resp.ElapsedMs,
	)
	return resp, nil
}

// resolve maps model ids to adapters. A provider the catalog names but the
// set lacks yields an Unavailable adapter, not a request failure.
func (e *Engine) resolve(ids []string) ([]target, error) {
	targets := make([]target, 0, len(ids))
	for _, id := range ids {
		desc, err := e.catalog.Resolve(id)
		if err != nil {
			if errors.Is(err, registry.ErrUnknownModel) {
				return nil, api.NewUnknownModelError(id)
			}
			return nil, err
		}
		adapter, ok := e.providers.Lookup(desc.Provider)
		if !ok {
			adapter = provider.Unavailable(desc.Provider, fmt.Sprintf("provider %q is not configured", desc.Provider))
		}
		targets = append(targets, target{modelID: id, provider: desc.Provider, adapter: adapter})
	}
	return targets, nil
}

// deadlineFor picks the absolute deadline: an explicit Deadline wins, then
// TimeoutMs relative to start, then the configured default.
func (e *Engine) deadlineFor(req *api.QueryRequest, start time.Time) time.Time {
	switch {
	case !req.Deadline.IsZero():
		return req.Deadline
	case req.TimeoutMs > 0:
		return start.Add(time.Duration(req.TimeoutMs) * time.Millisecond)
	default:
		return start.Add(e.cfg.DefaultDeadline)
	}
}

func queryStatus(resp *api.AggregatedResponse) string {
	switch ok := resp.Succeeded(); {
	case ok == len(resp.Results):
		return observability.QueryStatusComplete
	case ok == 0:
		return observability.QueryStatusFailed
	default:
		return observability.QueryStatusPartial
	}
}
