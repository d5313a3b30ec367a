package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricebench/internal/async"
	apperrors "pricebench/internal/errors"
	"pricebench/internal/provider"
)

// TokenBucket is a token bucket limiter refilled at rate tokens per second
// and holding at most capacity (the burst). Callers reserve a token up front; the balance may go negative, and the
// deficit tells each caller how long to wait for its turn.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket starts full, so the first burst callers pass at once.
// A non-positive rate admits only the initial burst in practice.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	tb := &TokenBucket{rate: max(tokensPerSecond, 1e-7), capacity: float64(max(burst, 1))}
	tb.tokens, tb.last = tb.capacity, time.Now()
	return tb
}

// PerMinute builds a bucket from a requests-per-minute budget.
func PerMinute(requestsPerMinute, burst int) *TokenBucket {
	return NewTokenBucket(float64(requestsPerMinute)/60.0, burst)
}

// reserve takes one token and returns how long the caller must wait before
// using it.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.last = now
	}
	tb.tokens--
	if tb.tokens >= 0 {
		return 0
	}
	return time.Duration(-tb.tokens / tb.rate * float64(time.Second))
}

// cancel returns a reserved token that was never used.
func (tb *TokenBucket) cancel() {
	tb.mu.Lock()
	tb.tokens++
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.mu.Unlock()
}

// Wait blocks until the caller may proceed or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	d := tb.reserve()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		tb.cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucketProvider wraps a Provider and gates calls using a token bucket.
type TokenBucketProvider struct {
	P  provider.Pricer
	TB *TokenBucket

	// Dispatcher runs deferred lookups; nil means one goroutine per call.
	Dispatcher async.Dispatcher
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

func (t *TokenBucketProvider) ComputePrice(ctx context.Context, productID string) (float64, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return 0, apperrors.Interrupted(t.P.Name(), err)
		}
	}
	return t.P.ComputePrice(ctx, productID)
}

func (t *TokenBucketProvider) ComputePriceDeferred(ctx context.Context, productID string) *async.Handle[float64] {
	return provider.Defer(ctx, t.Dispatcher, t, productID)
}
