package collector

import (
	"context"
	"time"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// sleep waits for d to pass or for a refresh signal. It returns false once
// ctx is done.
func sleep(ctx context.Context, d time.Duration, refresh <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-refresh:
		return true
	}
}

// emit delivers u unless ctx ends first.
func emit(ctx context.Context, out chan<- telemetry.Update, u telemetry.Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain discards a pending refresh signal.
func drain(refresh <-chan struct{}) {
	select {
	case <-refresh:
	default:
	}
}
