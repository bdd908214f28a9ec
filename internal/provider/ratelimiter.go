package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by a provider's HTTP calls. Tokens
// refill one per interval up to the bucket capacity, so a fresh limiter
// allows a burst before throttling kicks in.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	capacity int
	tokens   int
	last     time.Time
}

// NewRateLimiter allows capacity calls per interval.
func NewRateLimiter(capacity int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		capacity: capacity,
		tokens:   capacity,
		last:     time.Now(),
	}
}

// Allow takes a token if one is available.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked(time.Now())
	if l.tokens <= 0 {
		return false
	}
	l.tokens--
	return true
}

// Wait blocks until a token is available or ctx ends.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

func (l *RateLimiter) refillLocked(now time.Time) {
	earned := int(now.Sub(l.last) / l.interval)
	if earned <= 0 {
		return
	}
	l.tokens += earned
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.last = l.last.Add(time.Duration(earned) * l.interval)
}
