package engine

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/chorus/pkg/observability"
)

// pool bounds concurrent model invocations across every query served by
// one Engine.
type pool struct {
	sem  *semaphore.Weighted
	size int64
}

func newPool(size int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// acquire blocks until a slot is free or ctx is done. Waiting counts
// against the caller's deadline. The returned release must be called
// exactly once.
func (p *pool) acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		observability.PoolWait.Observe(time.Since(start).Seconds())
		return nil, err
	}
	observability.PoolWait.Observe(time.Since(start).Seconds())
	observability.PoolInFlight.Inc()
	return func() {
		observability.PoolInFlight.Dec()
		p.sem.Release(1)
	}, nil
}
