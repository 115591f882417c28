// Package async runs work on a goroutine and exposes the outcome as a Future.
//
//	f := async.Async(context.WithoutCancel(ctx), msg, sender.SendEmail)
//	if _, err := f.AwaitWithTimeout(3 * time.Second); errors.Is(err, async.ErrTimeout) {
//		// still running, result will be dropped
//	}
package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout = errors.New("async: operation timed out waiting for future completion")
	ErrPanic   = errors.New("async: function panicked")
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await blocks until the function returns.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitWithTimeout waits up to timeout. ErrTimeout leaves the function running.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-t.C:
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the function has returned, without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async runs fn(ctx, param) on a new goroutine. A panic in fn is recovered
// and reported as ErrPanic. A context cancelled before start skips fn.
func Async[T, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx, param)
	}()

	return f
}

// WaitAll waits for every future and returns all results with the joined errors.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error
	for i, f := range futures {
		res, err := f.Await()
		results[i] = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}
