// Package resilience bounds how long callers wait on the document store.
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when an operation exceeds its timeout.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn with a deadline of timeout and returns ErrTimeout when
// the deadline passes first. fn keeps running in the background until it
// observes the canceled context.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return timeoutCtx.Err()
	}
}

// Reachable reports whether probe succeeds within timeout. A timeout, a
// canceled context and a probe error all report false.
func Reachable(ctx context.Context, timeout time.Duration, probe func(context.Context) error) bool {
	return WithTimeout(ctx, timeout, probe) == nil
}
