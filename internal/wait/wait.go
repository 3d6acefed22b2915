// Package wait provides cancellable sleeps for control loops.
//
// Every blocking delay in the rover (servo settle, sample gaps, retry
// backoff, motor pulses, loop cadence) goes through Sleep so that a stop
// request is observed within one timer wakeup.
package wait

import (
	"context"
	"time"
)

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() if the context ended the wait, nil otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
