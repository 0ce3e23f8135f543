package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow takes a token if one is available without blocking
	Allow() bool
	// Wait blocks until a token is available or ctx is done
	Wait(ctx context.Context) error
	// Reset refills the limiter
	Reset()
}

// TokenBucket adds one token every refillEvery, up to capacity
type TokenBucket struct {
	capacity    int
	tokens      float64
	refillEvery time.Duration
	lastRefill  time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewTokenBucket creates a bucket that starts full
func NewTokenBucket(capacity int, refillEvery time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity:    capacity,
		tokens:      float64(capacity),
		refillEvery: refillEvery,
		now:         time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// PerMinute returns a bucket allowing requestsPerMinute on average with the given burst.
// It returns nil when requestsPerMinute is not positive, meaning "no ceiling".
func PerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute <= 0 {
		return nil
	}
	return NewTokenBucket(burst, time.Minute/time.Duration(requestsPerMinute))
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		timer := time.NewTimer(tb.untilNextToken())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = float64(tb.capacity)
	tb.lastRefill = tb.now()
}

func (tb *TokenBucket) untilNextToken() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	missing := 1 - tb.tokens
	wait := time.Duration(missing*float64(tb.refillEvery)) - tb.now().Sub(tb.lastRefill)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// refill adds the tokens earned since the last refill; callers hold mu
func (tb *TokenBucket) refill() {
	now := tb.now()
	if tb.refillEvery <= 0 {
		tb.tokens = float64(tb.capacity)
		tb.lastRefill = now
		return
	}

	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += float64(elapsed) / float64(tb.refillEvery)
	if tb.tokens > float64(tb.capacity) {
		tb.tokens = float64(tb.capacity)
	}
	tb.lastRefill = now
}
