package provider

import (
	"context"
	"time"

	"pricebench/internal/async"
)

// Quote is the price one provider returned for one product.
type Quote struct {
	Provider   string    `json:"provider"`
	ProductID  string    `json:"product_id"`
	Price      float64   `json:"price"`
	ReceivedAt time.Time `json:"received_at"`
}

// Pricer is the blocking half of a provider. Decorators wrap a Pricer.
// An empty productID means the identifier is absent.
type Pricer interface {
	Name() string
	ComputePrice(ctx context.Context, productID string) (float64, error)
}

// Provider can be asked for a price either blocking or deferred.
//
//go:generate mockgen -package=fetcher_test -destination=../fetcher/mock_provider_test.go -source=provider.go
type Provider interface {
	Pricer
	// ComputePriceDeferred starts the lookup and returns without waiting.
	ComputePriceDeferred(ctx context.Context, productID string) *async.Handle[float64]
}

// Defer runs p.ComputePrice on d and returns the handle immediately. A nil
// dispatcher means one goroutine per call.
func Defer(ctx context.Context, d async.Dispatcher, p Pricer, productID string) *async.Handle[float64] {
	if d == nil {
		d = async.Unbounded()
	}
	return async.Go(ctx, d, func(ctx context.Context) (float64, error) {
		return p.ComputePrice(ctx, productID)
	})
}
