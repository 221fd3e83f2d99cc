package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Local keeps one in-process token bucket per key. It is used when no
// redis is configured.
type Local struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocal creates a limiter allowing perSecond calls per key with the
// given burst.
func NewLocal(perSecond float64, burst int) *Local {
	if burst < 1 {
		burst = 1
	}
	return &Local{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait implements Limiter.
func (l *Local) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

func (l *Local) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}
