package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int

	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int
}

// idleTTL is how long an unused bucket is kept before it may be swept.
const idleTTL = 10 * time.Minute

// InProcessLimiter keeps one token bucket per subject and tier in memory.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
// Tiers absent from tiers use defaultRPM; a limit <= 0 disables limiting.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// Allow takes one token from the caller's bucket.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.Tier()

	cfg, ok := l.tiers[tier]
	if !ok {
		cfg = TierConfig{RequestsPerMinute: l.defaultRPM}
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops idle buckets at most once per idleTTL. Must be called with
// l.mu held.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleTTL {
			delete(l.buckets, key)
		}
	}
}
