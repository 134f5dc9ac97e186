package chat

import (
	"context"
	"time"
)

// Backoff is a bounded retry schedule: at most Attempts checks, spaced by
// Interval, optionally growing by Factor per attempt. It gives up silently
// once attempts are exhausted; callers decide what exhaustion means.
type Backoff struct {
	Attempts int
	Interval time.Duration
	Factor   float64
}

// Run invokes fn until it returns true, the schedule is exhausted, or ctx is
// done. The first check happens immediately. Returns whether fn succeeded.
func (b Backoff) Run(ctx context.Context, fn func() bool) bool {
	interval := b.Interval
	for i := 0; i < b.Attempts; i++ {
		if fn() {
			return true
		}
		if i == b.Attempts-1 {
			break
		}
		if !sleep(ctx, interval) {
			return false
		}
		if b.Factor > 1 {
			interval = time.Duration(float64(interval) * b.Factor)
		}
	}
	return false
}

// sleep waits for d, returning false if ctx expires first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
