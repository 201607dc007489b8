// internal/utils/rate_limiter.go
package utils

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per host so that a burst of
// lookups against one portal does not starve the others.
type HostRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewHostRateLimiter creates a limiter allowing requestsPerSecond per host.
// A non-positive rate disables limiting.
func NewHostRateLimiter(requestsPerSecond float64, burst int) *HostRateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's bucket allows the next request or ctx is done.
func (hl *HostRateLimiter) Wait(ctx context.Context, host string) error {
	return hl.limiterFor(host).Wait(ctx)
}

// SetLimit changes the rate for every known and future host.
func (hl *HostRateLimiter) SetLimit(requestsPerSecond float64, burst int) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.limit = rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		hl.limit = rate.Inf
	}
	if burst > 0 {
		hl.burst = burst
	}
	for _, l := range hl.limiters {
		l.SetLimit(hl.limit)
		l.SetBurst(hl.burst)
	}
}

func (hl *HostRateLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	l, ok := hl.limiters[host]
	if !ok {
		l = rate.NewLimiter(hl.limit, hl.burst)
		hl.limiters[host] = l
	}
	return l
}
