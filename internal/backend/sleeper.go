package backend

import (
	"context"
	"time"
)

// Sleeper waits with a standard timer. It is always available.
type Sleeper struct{}

// NewSleeper creates the fallback waiter.
func NewSleeper() *Sleeper {
	return &Sleeper{}
}

// Wait blocks for d or until ctx is done, whichever comes first.
// Non-positive durations return immediately.
func (s *Sleeper) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
