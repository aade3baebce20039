package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterSweepInterval is how often idle caller budgets are dropped.
	limiterSweepInterval = time.Minute

	// limiterIdleTTL is how long an unused budget is kept.
	limiterIdleTTL = 10 * time.Minute
)

type callerBudget struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per caller key.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type rateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerBudget
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// newRateLimiter allows perMinute requests per caller with the given burst.
func newRateLimiter(perMinute, burst int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		callers: make(map[string]*callerBudget),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// allow reports whether key may make a request now.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.callers[key]
	if !ok {
		b = &callerBudget{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.callers[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops budgets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	for key, b := range rl.callers {
		if b.lastSeen.Before(cutoff) {
			delete(rl.callers, key)
		}
	}
}

func (rl *rateLimiter) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}
