package finnhub

import (
	"context"
	"sync"
	"time"
)

// limiter is a token bucket sized to the API plan's calls-per-minute quota.
// The free tier allows 60 calls/min; the bucket absorbs short bursts and
// blocks callers once the quota is spent.
type limiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

func newLimiter(callsPerMinute int) *limiter {
	capacity := float64(callsPerMinute)
	return &limiter{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: capacity / 60.0,
		last:       time.Now(),
	}
}

func (l *limiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.refillRate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.last = now
	}
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// wait blocks until a token is available or the context is done.
func (l *limiter) wait(ctx context.Context) error {
	for {
		if l.allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}
