// Package guard bounds how long callers wait for asynchronous operations.
//
// The guard enforces deadlines on the wait, not on the operation: when the
// deadline fires the operation keeps running, it is simply no longer
// awaited. True cancellation must be layered on top by the operation
// itself (e.g. honoring ctx in its own blocking calls).
package guard

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that the wait for an operation exceeded its
// deadline. It is distinct from any failure of the operation itself and
// is considered retryable.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %dms", e.Operation, e.Timeout.Milliseconds())
}

// Retryable marks the error as safe to retry from the caller's side.
func (e *TimeoutError) Retryable() bool { return true }

// Operation is any asynchronous unit of work producing a T.
type Operation[T any] func(ctx context.Context) (T, error)

type result[T any] struct {
	value T
	err   error
}

// WithTimeout races op against a timer of timeout. If op settles first its
// result or failure is passed through unchanged; if the timer fires first
// the returned error is a *TimeoutError naming the operation.
//
// Tie-break for very short timeouts: when the timer fires, one final
// non-blocking check of the result channel runs first, so an operation
// that has already settled wins even a zero-millisecond race. An unsettled
// operation times out as soon as the scheduler visits the timer.
func WithTimeout[T any](ctx context.Context, op Operation[T], timeout time.Duration, name string) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		value, err := op(ctx)
		done <- result[T]{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		select {
		case res := <-done:
			return res.value, res.err
		default:
		}
		var zero T
		return zero, &TimeoutError{Operation: name, Timeout: timeout}
	}
}

// Run applies WithTimeout to an error-only operation.
func Run(ctx context.Context, op func(ctx context.Context) error, timeout time.Duration, name string) error {
	_, err := WithTimeout(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, timeout, name)
	return err
}

// Wrapper applies one timeout policy to any operation passed to it.
type Wrapper[T any] struct {
	timeout time.Duration
	name    string
}

// NewWrapper returns a reusable wrapper enforcing timeout under the given
// operation name.
func NewWrapper[T any](timeout time.Duration, name string) *Wrapper[T] {
	return &Wrapper[T]{timeout: timeout, name: name}
}

// Do runs op under the wrapper's policy, preserving op's result type.
func (w *Wrapper[T]) Do(ctx context.Context, op Operation[T]) (T, error) {
	return WithTimeout(ctx, op, w.timeout, w.name)
}
