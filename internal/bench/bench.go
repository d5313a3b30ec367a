// Package bench runs retrieval strategies one after another, times them and
// prints their results.
package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "pricebench/internal/errors"
	"pricebench/internal/fetcher"
	"pricebench/internal/provider"
)

// Run is the outcome of one strategy execution.
type Run struct {
	ID       uuid.UUID
	Strategy fetcher.Strategy
	Quotes   []provider.Quote
	// Invocation is how long the deferred call took to hand back its handle.
	// It is zero for the other strategies.
	Invocation time.Duration
	Elapsed    time.Duration
	Err        error
}

var titles = map[fetcher.Strategy]string{
	fetcher.Sequential:   "Iterative synchronous",
	fetcher.Parallel:     "Parallel synchronous",
	fetcher.Deferred:     "Remote asynchronous",
	fetcher.FanOut:       "Asynchronous",
	fetcher.FanOutPooled: "Asynchronous with worker pool",
}

// Title is the human heading printed before a strategy's output.
func Title(s fetcher.Strategy) string {
	if t, ok := titles[s]; ok {
		return t
	}
	return string(s)
}

// Runner executes strategies against one Fetcher.
type Runner struct {
	Fetcher   *fetcher.Fetcher
	ProductID string
	// DeferredWork is how long the deferred strategy keeps the caller busy
	// between dispatching the lookup and awaiting it.
	DeferredWork time.Duration
	Logger       zerolog.Logger
	Out          io.Writer
}

// RunAll executes strategies in order. A failed strategy is recorded and the
// next one still runs; a cancelled ctx stops the sequence.
func (r *Runner) RunAll(ctx context.Context, strategies []fetcher.Strategy) []Run {
	runs := make([]Run, 0, len(strategies))
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		runs = append(runs, r.Run(ctx, s))
	}
	return runs
}

// Run executes one strategy and prints its quotes and timings.
func (r *Runner) Run(ctx context.Context, s fetcher.Strategy) Run {
	run := Run{ID: uuid.New(), Strategy: s}
	log := r.Logger.With().Str("run_id", run.ID.String()).Str("strategy", string(s)).Logger()
	fmt.Fprintln(r.Out, Title(s))
	log.Debug().Str("product", r.ProductID).Msg("strategy started")

	start := time.Now()
	if s == fetcher.Deferred {
		r.runDeferred(ctx, &run, start)
	} else {
		run.Quotes, run.Err = r.Fetcher.Fetch(ctx, s, r.ProductID)
		run.Elapsed = time.Since(start)
		if run.Err == nil {
			for _, q := range run.Quotes {
				fmt.Fprintf(r.Out, "%s price is %.2f\n", q.Provider, q.Price)
			}
			fmt.Fprintf(r.Out, "Done in %d msecs\n", run.Elapsed.Milliseconds())
		}
	}

	if run.Err != nil {
		run.Quotes = nil
		fmt.Fprintf(r.Out, "Failed after %d msecs: %v\n", run.Elapsed.Milliseconds(), run.Err)
		log.Error().Err(run.Err).Dur("elapsed", run.Elapsed).Msg("strategy failed")
		return run
	}
	log.Info().Int("quotes", len(run.Quotes)).Dur("elapsed", run.Elapsed).Msg("strategy finished")
	return run
}

func (r *Runner) runDeferred(ctx context.Context, run *Run, start time.Time) {
	h := r.Fetcher.Deferred(ctx, r.ProductID)
	run.Invocation = time.Since(start)
	fmt.Fprintf(r.Out, "Invocation returned after %d msecs\n", run.Invocation.Milliseconds())

	if err := otherWork(ctx, r.DeferredWork); err != nil {
		run.Elapsed = time.Since(start)
		run.Err = apperrors.WrapError(err, "waiting before await")
		return
	}

	q, err := h.Await()
	run.Elapsed = time.Since(start)
	if err != nil {
		run.Err = err
		return
	}
	run.Quotes = []provider.Quote{q}
	fmt.Fprintf(r.Out, "Price is %.2f\n", q.Price)
	fmt.Fprintf(r.Out, "Price returned after %d msecs\n", run.Elapsed.Milliseconds())
}

// otherWork keeps the caller busy for d, the way real code would do something
// useful while a lookup is in flight.
func otherWork(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExitCode maps the runs of planned strategies to a process exit status.
// Cancellation wins when a run failed because of it or the sequence stopped
// before every strategy ran; a cancel that arrives after the last success
// changes nothing.
func ExitCode(runs []Run, planned int) int {
	if len(runs) < planned {
		return apperrors.ExitErrorCanceled
	}
	code := apperrors.ExitSuccess
	for _, r := range runs {
		switch {
		case r.Err == nil:
		case apperrors.IsContextError(r.Err):
			return apperrors.ExitErrorCanceled
		default:
			code = apperrors.ExitErrorGeneric
		}
	}
	return code
}
