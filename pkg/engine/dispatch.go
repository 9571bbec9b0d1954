package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/provider"
)

// target is one resolved model of a query.
type target struct {
	modelID  string
	provider string
	adapter  provider.Adapter
}

// slot is written exactly once by the goroutine that owns its index.
type slot struct {
	outcome api.ModelOutcome
	arrived time.Time
}

type invokeResult struct {
	content string
	err     error
}

// dispatch invokes every target concurrently under ctx and returns one slot
// per target, in target order. Invocations are independent: a failure or
// panic in one never cancels its siblings.
func (e *Engine) dispatch(ctx context.Context, requestID, prompt string, targets []target) []slot {
	slots := make([]slot, len(targets))

	if ctx.Err() != nil {
		now := time.Now()
		for i, t := range targets {
			slots[i] = e.complete(requestID, t, now, "", &provider.Error{
				Provider: t.provider,
				Kind:     api.ErrorKindTimeout,
				Detail:   "deadline elapsed before dispatch",
			})
		}
		return slots
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(idx int, t target) {
			defer wg.Done()
			slots[idx] = e.invoke(ctx, requestID, prompt, t)
		}(i, t)
	}
	wg.Wait()

	return slots
}

// invoke runs one adapter call. The call itself runs in its own goroutine
// so that an adapter ignoring ctx still yields a Timeout at the deadline;
// its pool slot is released only when it actually returns.
func (e *Engine) invoke(ctx context.Context, requestID, prompt string, t target) slot {
	start := time.Now()

	release, err := e.pool.acquire(ctx)
	if err != nil {
		return e.complete(requestID, t, start, "", &provider.Error{
			Provider: t.provider,
			Kind:     api.ErrorKindTimeout,
			Detail:   "deadline exceeded while waiting for a free slot",
			Err:      err,
		})
	}
	if ctx.Err() != nil {
		release()
		return e.complete(requestID, t, start, "", provider.TransportError(ctx, t.provider, ctx.Err()))
	}

	done := make(chan invokeResult, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("adapter panic",
					"request_id", requestID,
					"model", t.modelID,
					"provider", t.provider,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				done <- invokeResult{err: provider.Rejected(t.provider, 0, fmt.Sprintf("adapter panic: %v", r))}
			}
		}()
		content, err := t.adapter.Invoke(ctx, &provider.Invocation{ModelID: t.modelID, Prompt: prompt})
		done <- invokeResult{content: content, err: err}
	}()

	select {
	case r := <-done:
		return e.complete(requestID, t, start, r.content, r.err)
	case <-ctx.Done():
		select {
		case r := <-done:
			return e.complete(requestID, t, start, r.content, r.err)
		default:
		}
		return e.complete(requestID, t, start, "", provider.TransportError(ctx, t.provider, ctx.Err()))
	}
}

// complete turns an adapter result into an outcome and records metrics.
func (e *Engine) complete(requestID string, t target, start time.Time, content string, err error) slot {
	latency := time.Since(start)

	if err == nil && strings.TrimSpace(content) == "" {
		err = provider.EmptyResponse(t.provider)
	}

	var o api.ModelOutcome
	label := string(api.OutcomeSuccess)
	if err != nil {
		kind, detail, status := provider.Classify(err)
		if !kind.IsOutcomeKind() {
			kind = api.ErrorKindProviderRejected
		}
		o = api.Failure(t.modelID, kind, detail, latency)
		o.ProviderStatus = status
		label = string(kind)

		slog.Warn("model invocation failed",
			"request_id", requestID,
			"model", t.modelID,
			"provider", t.provider,
			"kind", kind,
			"detail", detail,
			"latency", latency,
		)
	} else {
		o = api.Success(t.modelID, content, latency)
	}

	observability.ModelInvocationsTotal.WithLabelValues(t.provider, t.modelID, label).Inc()
	observability.ModelLatency.WithLabelValues(t.provider, t.modelID).Observe(latency.Seconds())

	return slot{outcome: o, arrived: time.Now()}
}
