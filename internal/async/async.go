// Package async provides deferred handles for in-flight computations and the
// Dispatcher abstraction that decides where those computations run.
package async

import (
	"context"
	"errors"
	"fmt"
)

// ErrTaskPanicked is reported by a handle whose computation panicked.
var ErrTaskPanicked = errors.New("deferred task panicked")

// Dispatcher runs tasks somewhere other than the calling goroutine.
// Dispatch must not wait for the task to run.
type Dispatcher interface {
	Dispatch(task func()) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(task func()) error

func (f DispatcherFunc) Dispatch(task func()) error { return f(task) }

// Unbounded returns a Dispatcher that starts one goroutine per task.
func Unbounded() Dispatcher {
	return DispatcherFunc(func(task func()) error {
		go task()
		return nil
	})
}

// Result is the outcome of a deferred computation: either a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the computation succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Unpack returns the result in Go's (value, error) form.
func (r Result[T]) Unpack() (T, error) { return r.Value, r.Err }

// Handle references a computation that is running or has completed.
// A Handle is completed exactly once and may be awaited any number of times
// from any goroutine.
type Handle[T any] struct {
	done   chan struct{}
	result Result[T]
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

func (h *Handle[T]) complete(v T, err error) {
	h.result = Result[T]{Value: v, Err: err}
	close(h.done)
}

// Done is closed once the computation has completed.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Wait blocks until the computation completes and returns its tagged result.
func (h *Handle[T]) Wait() Result[T] {
	<-h.done
	return h.result
}

// Await blocks until the computation completes.
func (h *Handle[T]) Await() (T, error) {
	return h.Wait().Unpack()
}

// AwaitContext is like Await but gives up when ctx is done. Giving up does
// not stop the computation; the handle still completes later.
func (h *Handle[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.result.Unpack()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Go dispatches fn on d and returns its handle without waiting. If d rejects
// the task the handle is already completed with the rejection error.
func Go[T any](ctx context.Context, d Dispatcher, fn func(context.Context) (T, error)) *Handle[T] {
	h := newHandle[T]()
	task := func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				h.complete(zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r))
				return
			}
			h.complete(v, err)
		}()
		v, err = fn(ctx)
	}
	if err := d.Dispatch(task); err != nil {
		var zero T
		h.complete(zero, err)
	}
	return h
}

// Completed returns a handle that already holds v and err.
func Completed[T any](v T, err error) *Handle[T] {
	h := newHandle[T]()
	h.complete(v, err)
	return h
}

// Join awaits every handle in order. It returns all values, or nil and the
// joined errors of every failed handle.
func Join[T any](handles []*Handle[T]) ([]T, error) {
	out := make([]T, len(handles))
	var errs []error
	for i, h := range handles {
		v, err := h.Await()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
