// Package testutil holds helpers for tests that wait on asynchronous work,
// such as a tree ticking on another goroutine.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// WaitForState calls getter every interval until predicate accepts its
// result, which is returned. It fails once timeout elapses or ctx is done.
//
//	status, err := WaitForState(ctx, node.State,
//		func(s behavior.State) bool { return s == behavior.StateRunning },
//		time.Second, time.Millisecond)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state := getter()
		if predicate(state) {
			return state, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-deadline.C:
			var zero T
			return zero, fmt.Errorf("timeout after %v waiting for %T state, last %v", timeout, state, state)
		case <-ticker.C:
		}
	}
}
