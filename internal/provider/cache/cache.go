package cache

import (
	"context"
	"sync"
	"time"

	"pricebench/internal/async"
	"pricebench/internal/provider"
)

// entry stores a cached price for a single product with expiry.
type entry struct {
	expiresAt time.Time
	price     float64
}

// Provider caches prices per product id for a TTL.
// Failed lookups are never cached; an interrupted computation is returned
// to the caller as-is.
type Provider struct {
	P        provider.Pricer
	TTL      time.Duration
	MaxItems int

	// Dispatcher runs deferred lookups; nil means one goroutine per call.
	Dispatcher async.Dispatcher

	mu    sync.RWMutex
	items map[string]entry // key: product id
	now   func() time.Time
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// ComputePrice returns the cached price for productID while it is fresh and
// asks the wrapped provider otherwise.
func (c *Provider) ComputePrice(ctx context.Context, productID string) (float64, error) {
	if c.TTL <= 0 {
		return c.P.ComputePrice(ctx, productID)
	}

	now := c.clock()
	c.mu.RLock()
	e, ok := c.items[productID]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.price, nil
	}

	price, err := c.P.ComputePrice(ctx, productID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[productID] = entry{expiresAt: c.clock().Add(c.TTL), price: price}
	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		t := c.clock()
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if !t.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k == productID {
				continue
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
	return price, nil
}

func (c *Provider) ComputePriceDeferred(ctx context.Context, productID string) *async.Handle[float64] {
	return provider.Defer(ctx, c.Dispatcher, c, productID)
}

// Len reports how many products are cached, fresh or not.
func (c *Provider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
