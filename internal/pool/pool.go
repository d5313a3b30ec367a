// Package pool implements a fixed-size worker pool used as an
// async.Dispatcher. Submitting never blocks: tasks wait in an unbounded FIFO
// queue until one of the workers is free.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	apperrors "pricebench/internal/errors"
	"pricebench/internal/metrics"
)

// ErrPoolClosed is returned by Dispatch after Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics records queue and worker activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithLogger sets the logger for pool lifecycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// Pool runs tasks on a fixed number of worker goroutines. Workers are plain
// goroutines and never keep the process alive.
type Pool struct {
	size    int
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	active atomic.Int64
	peak   atomic.Int64
	wg     sync.WaitGroup
}

// New starts a pool with size workers. The size is fixed for the pool's
// lifetime.
func New(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, apperrors.NewConfigError("pool.size", "must be at least 1, got %d", size)
	}
	p := &Pool{size: size, logger: zerolog.Nop()}
	p.cond = sync.NewCond(&p.mu)
	for _, o := range opts {
		o(p)
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	p.logger.Debug().Int("size", size).Msg("worker pool started")
	return p, nil
}

// Size is the number of workers.
func (p *Pool) Size() int { return p.size }

// Active is the number of tasks running right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Peak is the highest number of tasks that ever ran at the same time.
func (p *Pool) Peak() int { return int(p.peak.Load()) }

// Dispatch queues task for execution. It is safe for concurrent use.
func (p *Pool) Dispatch(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.metrics.TaskQueued()
	p.cond.Signal()
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.metrics.TaskStarted()
	defer func() {
		p.active.Add(-1)
		p.metrics.TaskFinished()
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("pool task panicked")
		}
	}()
	task()
}

// Close stops accepting tasks and waits until the queued ones have run or
// ctx is done. Calling Close more than once is allowed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Debug().Int("peak", p.Peak()).Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
