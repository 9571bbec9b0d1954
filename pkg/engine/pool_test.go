package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/provider"
)

func TestPool_AcquireRespectsContext(t *testing.T) {
	p := newPool(1)

	release, err := p.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := p.acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestRun_PoolBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	tracked := func(ctx context.Context, inv *provider.Invocation) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		select {
		case <-time.After(20 * time.Millisecond):
			return "ok " + inv.ModelID, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	fake := &fakeAdapter{name: "fake", behaviors: map[string]behavior{
		"m1": tracked, "m2": tracked, "m3": tracked, "m4": tracked,
	}}
	e := newTestEngine(t, fake, nil, Config{MaxInFlight: 2})

	resp, err := e.Run(context.Background(), &api.QueryRequest{
		Prompt:    "hi",
		ModelIDs:  []string{"m1", "m2", "m3", "m4"},
		TimeoutMs: 5000,
	})
	require.NoError(t, err)

	for _, r := range resp.Results {
		assert.True(t, r.OK(), "%s: %+v", r.ModelID, r.Error)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_QueuedInvocationTimesOut(t *testing.T) {
	fake := &fakeAdapter{name: "fake", behaviors: map[string]behavior{
		"m1": hang(),
		"m2": hang(),
	}}
	e := newTestEngine(t, fake, nil, Config{MaxInFlight: 1})

	resp, err := e.Run(context.Background(), &api.QueryRequest{
		Prompt:    "hi",
		ModelIDs:  []string{"m1", "m2"},
		TimeoutMs: 80,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	for _, r := range resp.Results {
		assert.Equal(t, api.ErrorKindTimeout, r.Kind(), r.ModelID)
	}
	// Only the model holding the single slot reached its adapter.
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestRun_StuckAdapterHoldsSlotUntilItReturns(t *testing.T) {
	unblock := make(chan struct{})
	fake := &fakeAdapter{name: "fake", behaviors: map[string]behavior{
		"m1": func(context.Context, *provider.Invocation) (string, error) {
			<-unblock
			return "late", nil
		},
	}}
	e := newTestEngine(t, fake, nil, Config{MaxInFlight: 1})
	run := func(id string, timeoutMs int) api.ModelOutcome {
		resp, err := e.Run(context.Background(), &api.QueryRequest{Prompt: "hi", ModelIDs: []string{id}, TimeoutMs: timeoutMs})
		require.NoError(t, err)
		return resp.Results[0]
	}

	assert.Equal(t, api.ErrorKindTimeout, run("m1", 50).Kind())

	// m1's adapter still owns the only slot after its deadline.
	assert.Equal(t, api.ErrorKindTimeout, run("m2", 50).Kind())

	close(unblock)
	assert.True(t, run("m2", 2000).OK(), "slot was not released once the adapter returned")
}
