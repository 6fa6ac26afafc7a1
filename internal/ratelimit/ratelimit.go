// Package ratelimit paces outbound requests with token buckets: per key for
// worker-slot spacing, and a single shared bucket for provider-wide ceilings.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limitOf(rps),
		burst:    max(burst, 1),
	}
}

// NewSpacing returns a limiter that lets each key start at most one request
// per interval. A zero interval disables limiting.
func NewSpacing(interval time.Duration) *KeyedRateLimiter {
	if interval <= 0 {
		return New(math.Inf(1), 1)
	}
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(interval),
		burst:    1,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or context is canceled.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Len reports how many keys have a limiter.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.limiters)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	// Fast path: read lock
	krl.mu.RLock()
	limiter, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if exists {
		return limiter
	}

	// Slow path: write lock to create
	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = krl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters[key] = limiter
	return limiter
}

// Global is one token bucket shared by every caller, for ceilings imposed
// by a provider across all workers.
type Global struct {
	limiter *rate.Limiter
}

// NewGlobal allows rps requests per second with no burst beyond one.
// A non-positive rps disables limiting.
func NewGlobal(rps float64) *Global {
	return &Global{limiter: rate.NewLimiter(limitOf(rps), 1)}
}

// Wait blocks until the next request may start or ctx is done.
func (g *Global) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

func limitOf(rps float64) rate.Limit {
	if rps <= 0 || math.IsInf(rps, 1) {
		return rate.Inf
	}
	return rate.Limit(rps)
}
