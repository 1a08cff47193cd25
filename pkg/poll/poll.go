// Package poll implements the bounded cooperative waits every blocking point
// of the engine is built from. There is no event-driven suspension against
// the host UI tree, so waiting is always "check, sleep, check again" with a
// hard deadline, and cancellation resolves the wait early as unsatisfied
// rather than returning an error.
package poll

import (
	"context"
	"time"
)

// Until polls cond every interval until it reports true, the timeout elapses,
// or ctx is cancelled. It returns true only when cond was satisfied.
// Cancellation and timeout both yield false so the caller's cleanup path runs
// the same way in either case.
func Until(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return false
		}
		if cond(ctx) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// It reports whether the full duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
