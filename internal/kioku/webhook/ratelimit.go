package webhook

import (
	"sync"
	"time"
)

// rateLimiter is a simple fixed-window rate limiter keyed by user.
// Each user has an independent counter that resets after window duration.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*windowBucket
	now     func() time.Time
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*windowBucket),
		now:     time.Now,
	}
}

// Allow returns true if key is within its rate limit, false when exceeded.
// A limiter with a non-positive limit allows everything.
func (r *rateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	b, ok := r.buckets[key]
	if !ok || now.After(b.resetAt) {
		r.buckets[key] = &windowBucket{count: 1, resetAt: now.Add(r.window)}
		r.sweep(now)
		return true
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	return true
}

// sweep drops expired buckets once the map grows past a few hundred users.
func (r *rateLimiter) sweep(now time.Time) {
	if len(r.buckets) < 512 {
		return
	}
	for k, b := range r.buckets {
		if now.After(b.resetAt) {
			delete(r.buckets, k)
		}
	}
}
