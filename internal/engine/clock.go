package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic logical clock that stamps recorded samples.
//
// Sequence numbers let stored samples be ordered without relying on wall
// time. The first call to Next returns 1.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies the engine's notion of "now".
// Production code uses SystemTime; tests inject a fake clock.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock with its monotonic reading.
type SystemTime struct{}

// Now returns time.Now().
func (SystemTime) Now() time.Time {
	return time.Now()
}
