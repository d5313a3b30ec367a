// Package simulated provides an in-process price provider that behaves like a
// slow remote service: every lookup waits a fixed delay and returns a random
// price derived from the product identifier.
package simulated

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"pricebench/internal/async"
	apperrors "pricebench/internal/errors"
)

const (
	// DefaultDelay is the simulated latency of one lookup.
	DefaultDelay = time.Second
	// DefaultFallback replaces product identifiers that are too short.
	DefaultFallback = "testval"
)

// Option configures a Provider.
type Option func(*Provider)

// WithDelay sets the simulated latency. Zero disables the wait.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithFallback sets the identifier used when the product id has fewer than
// two characters. Values shorter than two characters are ignored.
func WithFallback(s string) Option {
	return func(p *Provider) {
		if len([]rune(s)) >= 2 {
			p.fallback = []rune(s)
		}
	}
}

// WithRandom replaces the random source. r must return values in [0, 1) and
// be safe for concurrent use.
func WithRandom(r func() float64) Option {
	return func(p *Provider) { p.random = r }
}

// WithDispatcher runs deferred lookups on d instead of one goroutine each.
func WithDispatcher(d async.Dispatcher) Option {
	return func(p *Provider) { p.dispatcher = d }
}

// WithLogger sets the logger used for per-lookup debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// Provider is immutable after New and safe for concurrent use.
type Provider struct {
	name       string
	delay      time.Duration
	fallback   []rune
	random     func() float64
	dispatcher async.Dispatcher
	logger     zerolog.Logger
}

// New creates a provider called name.
func New(name string, opts ...Option) *Provider {
	p := &Provider{
		name:       name,
		delay:      DefaultDelay,
		fallback:   []rune(DefaultFallback),
		random:     rand.Float64,
		dispatcher: async.Unbounded(),
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name is the provider's display name.
func (p *Provider) Name() string { return p.name }

// Delay is the simulated latency of one lookup.
func (p *Provider) Delay() time.Duration { return p.delay }

// ComputePrice waits the simulated delay and returns a price for productID.
// It never fails because of its input; it fails only when ctx is cancelled
// before the delay elapses.
func (p *Provider) ComputePrice(ctx context.Context, productID string) (float64, error) {
	if err := p.wait(ctx); err != nil {
		p.logger.Debug().Str("provider", p.name).Err(err).Msg("price computation interrupted")
		return 0, apperrors.Interrupted(p.name, err)
	}
	price := p.price(productID)
	p.logger.Debug().Str("provider", p.name).Str("product", productID).Float64("price", price).Msg("price computed")
	return price, nil
}

// ComputePriceDeferred starts ComputePrice on the provider's dispatcher and
// returns at once.
func (p *Provider) ComputePriceDeferred(ctx context.Context, productID string) *async.Handle[float64] {
	return async.Go(ctx, p.dispatcher, func(ctx context.Context) (float64, error) {
		return p.ComputePrice(ctx, productID)
	})
}

func (p *Provider) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.delay <= 0 {
		return nil
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// price returns random*c0 + c1, where c0 and c1 are the first two characters
// of productID, each replaced by the fallback's character at the same
// position when productID is too short. The result lies in [c1, c0+c1).
func (p *Provider) price(productID string) float64 {
	c0, c1 := Chars(productID, p.fallback)
	return p.random()*float64(c0) + float64(c1)
}

// Chars returns the two characters a price is derived from.
func Chars(productID string, fallback []rune) (rune, rune) {
	id := []rune(productID)
	c0, c1 := fallback[0], fallback[1]
	if len(id) >= 1 {
		c0 = id[0]
	}
	if len(id) >= 2 {
		c1 = id[1]
	}
	return c0, c1
}
