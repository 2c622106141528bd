// Package poll provides bounded-poll waiting for conditions that have no
// event to subscribe to, like DOM state behind an automation bridge.
package poll

import (
	"context"
	"time"
)

// Predicate reports whether the awaited condition holds. An error means
// "could not check right now" and is treated as not-yet; only context
// cancellation aborts a wait early.
type Predicate func(ctx context.Context) (bool, error)

// Await polls predicate every interval until it returns true, timeout
// elapses, or ctx is cancelled. It returns (false, nil) on timeout and
// (false, ctx.Err()) on cancellation, and always checks the predicate at
// least once.
func Await(ctx context.Context, timeout, interval time.Duration, predicate Predicate) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := predicate(ctx)
		if err == nil && ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sleep pauses for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
