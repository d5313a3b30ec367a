package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricebench/internal/async"
	apperrors "pricebench/internal/errors"
	"pricebench/internal/provider"
)

// MinInterval wraps a provider and spaces the start of consecutive lookups at
// least Interval apart. Each caller reserves the next free start slot, so
// concurrent callers are serialized on start time but may overlap while
// computing. A caller whose context ends before its slot fails as interrupted
// and returns the slot when it was the last one booked.
type MinInterval struct {
	P        provider.Pricer
	Interval time.Duration

	// Dispatcher runs deferred lookups; nil means one goroutine per call.
	Dispatcher async.Dispatcher

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) ComputePrice(ctx context.Context, productID string) (float64, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				m.release(slot)
				return 0, apperrors.Interrupted(m.P.Name(), ctx.Err())
			case <-t.C:
			}
		}
	}
	return m.P.ComputePrice(ctx, productID)
}

// release gives back an unused slot if no later caller has booked after it.
func (m *MinInterval) release(slot time.Time) {
	m.mu.Lock()
	if m.next.Equal(slot.Add(m.Interval)) {
		m.next = slot
	}
	m.mu.Unlock()
}

func (m *MinInterval) ComputePriceDeferred(ctx context.Context, productID string) *async.Handle[float64] {
	return provider.Defer(ctx, m.Dispatcher, m, productID)
}
