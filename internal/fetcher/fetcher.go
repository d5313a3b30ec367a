// Package fetcher retrieves one price per provider using different
// concurrency strategies. Every strategy returns quotes in provider order.
package fetcher

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pricebench/internal/async"
	apperrors "pricebench/internal/errors"
	"pricebench/internal/metrics"
	"pricebench/internal/provider"
)

// Strategy names a retrieval strategy.
type Strategy string

const (
	Sequential   Strategy = "sequential"
	Parallel     Strategy = "parallel"
	Deferred     Strategy = "deferred"
	FanOut       Strategy = "fanout"
	FanOutPooled Strategy = "fanout-pool"
)

// Strategies lists every strategy in the order the driver runs them.
func Strategies() []Strategy {
	return []Strategy{Sequential, Parallel, Deferred, FanOut, FanOutPooled}
}

// ParseStrategy accepts a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	name := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies() {
		if name == known {
			return known, nil
		}
	}
	return "", apperrors.NewConfigError("bench.strategies", "unknown strategy %q", s)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPool injects the bounded dispatcher used by FanOutPooled.
func WithPool(d async.Dispatcher) Option {
	return func(f *Fetcher) { f.pool = d }
}

// WithDispatcher replaces the default unbounded dispatcher used by FanOut.
func WithDispatcher(d async.Dispatcher) Option {
	return func(f *Fetcher) { f.dispatcher = d }
}

// WithParallelism sets how many lookups Parallel runs at once. It is never
// lower than the number of providers.
func WithParallelism(n int) Option {
	return func(f *Fetcher) { f.parallelism = n }
}

// WithLogger sets the logger for collection failures.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithMetrics records every lookup's duration and outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// Fetcher holds an ordered, fixed list of providers.
type Fetcher struct {
	providers   []provider.Provider
	pool        async.Dispatcher
	dispatcher  async.Dispatcher
	parallelism int
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// New creates a Fetcher over providers, keeping their order.
func New(providers []provider.Provider, opts ...Option) (*Fetcher, error) {
	if len(providers) == 0 {
		return nil, apperrors.NewConfigError("bench.providers", "at least one provider is required")
	}
	f := &Fetcher{
		providers:  append([]provider.Provider(nil), providers...),
		dispatcher: async.Unbounded(),
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.parallelism < len(f.providers) {
		f.parallelism = len(f.providers)
	}
	return f, nil
}

// Providers returns a copy of the provider list.
func (f *Fetcher) Providers() []provider.Provider {
	return append([]provider.Provider(nil), f.providers...)
}

// lookup prices p blocking and turns the result into a Quote.
func (f *Fetcher) lookup(ctx context.Context, s Strategy, p provider.Pricer, productID string) (provider.Quote, error) {
	start := time.Now()
	price, err := p.ComputePrice(ctx, productID)
	f.metrics.ObserveLookup(string(s), p.Name(), time.Since(start), err)
	if err != nil {
		return provider.Quote{}, err
	}
	return provider.Quote{
		Provider:   p.Name(),
		ProductID:  productID,
		Price:      price,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// Sequential prices one provider after another and stops at the first
// failure.
func (f *Fetcher) Sequential(ctx context.Context, productID string) ([]provider.Quote, error) {
	out := make([]provider.Quote, 0, len(f.providers))
	for _, p := range f.providers {
		q, err := f.lookup(ctx, Sequential, p, productID)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Parallel prices all providers at once, with at most parallelism lookups in
// flight. The first failure cancels the remaining lookups and is returned.
func (f *Fetcher) Parallel(ctx context.Context, productID string) ([]provider.Quote, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	out := make([]provider.Quote, len(f.providers))
	for i, p := range f.providers {
		g.Go(func() error {
			q, err := f.lookup(ctx, Parallel, p, productID)
			if err != nil {
				return err
			}
			out[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Deferred starts a single lookup on the first provider through its own
// deferred call and returns without waiting. Only awaiting the handle pays
// the provider's latency.
func (f *Fetcher) Deferred(ctx context.Context, productID string) *async.Handle[provider.Quote] {
	p := f.providers[0]
	start := time.Now()
	ph := p.ComputePriceDeferred(ctx, productID)
	return async.Go(ctx, async.Unbounded(), func(context.Context) (provider.Quote, error) {
		price, err := ph.Await()
		f.metrics.ObserveLookup(string(Deferred), p.Name(), time.Since(start), err)
		if err != nil {
			return provider.Quote{}, err
		}
		return provider.Quote{Provider: p.Name(), ProductID: productID, Price: price, ReceivedAt: time.Now().UTC()}, nil
	})
}

// Dispatch starts one lookup per provider on d and returns their handles in
// provider order. A nil d uses the fetcher's default dispatcher. Lookups on
// the injected pool are recorded as fanout-pool, all others as fanout.
func (f *Fetcher) Dispatch(ctx context.Context, productID string, d async.Dispatcher) []*async.Handle[provider.Quote] {
	s := FanOut
	if f.isPool(d) {
		s = FanOutPooled
	}
	return f.dispatch(ctx, s, productID, d)
}

// isPool reports whether d is the injected pool. Dispatchers backed by func
// values are never equal to anything.
func (f *Fetcher) isPool(d async.Dispatcher) bool {
	if d == nil || f.pool == nil || !reflect.TypeOf(d).Comparable() {
		return false
	}
	return d == f.pool
}

func (f *Fetcher) dispatch(ctx context.Context, s Strategy, productID string, d async.Dispatcher) []*async.Handle[provider.Quote] {
	if d == nil {
		d = f.dispatcher
	}
	handles := make([]*async.Handle[provider.Quote], len(f.providers))
	for i, p := range f.providers {
		handles[i] = async.Go(ctx, d, func(ctx context.Context) (provider.Quote, error) {
			return f.lookup(ctx, s, p, productID)
		})
	}
	return handles
}

// FanOut dispatches every lookup on the default dispatcher, then collects
// them in provider order.
func (f *Fetcher) FanOut(ctx context.Context, productID string) ([]provider.Quote, error) {
	return f.collect(FanOut, f.dispatch(ctx, FanOut, productID, f.dispatcher))
}

// FanOutPooled is FanOut on the injected bounded pool.
func (f *Fetcher) FanOutPooled(ctx context.Context, productID string) ([]provider.Quote, error) {
	if f.pool == nil {
		return nil, apperrors.NewConfigError("pool", "no worker pool was injected")
	}
	return f.collect(FanOutPooled, f.dispatch(ctx, FanOutPooled, productID, f.pool))
}

func (f *Fetcher) collect(s Strategy, handles []*async.Handle[provider.Quote]) ([]provider.Quote, error) {
	quotes, err := async.Join(handles)
	if err != nil {
		f.logger.Debug().Str("strategy", string(s)).Err(err).Msg("collection failed")
		return nil, err
	}
	return quotes, nil
}

// Fetch runs strategy s to completion. Deferred asks only the first provider,
// so it yields a single quote; every other strategy yields one per provider.
func (f *Fetcher) Fetch(ctx context.Context, s Strategy, productID string) ([]provider.Quote, error) {
	switch s {
	case Sequential:
		return f.Sequential(ctx, productID)
	case Parallel:
		return f.Parallel(ctx, productID)
	case Deferred:
		q, err := f.Deferred(ctx, productID).Await()
		if err != nil {
			return nil, err
		}
		return []provider.Quote{q}, nil
	case FanOut:
		return f.FanOut(ctx, productID)
	case FanOutPooled:
		return f.FanOutPooled(ctx, productID)
	default:
		return nil, fmt.Errorf("fetch: %w", apperrors.NewConfigError("strategy", "unknown strategy %q", s))
	}
}
