package engine

import (
	"context"
	"fmt"
	"time"
)

// Mode identifies which timing backend an engine uses.
// It is decided once by Probe and never changes afterwards.
type Mode int

const (
	// ModeFallback is the portable cooperative sleeper.
	ModeFallback Mode = iota

	// ModeAccelerated is the tighter-resolution backend.
	ModeAccelerated
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeFallback:
		return "fallback"
	case ModeAccelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name back into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fallback":
		return ModeFallback, nil
	case "accelerated":
		return ModeAccelerated, nil
	default:
		return ModeFallback, fmt.Errorf("unknown backend mode %q", s)
	}
}

// Waiter blocks for a duration. Implementations must return promptly with
// ctx.Err() when ctx is cancelled.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// WaiterFunc adapts a function to the Waiter interface.
type WaiterFunc func(ctx context.Context, d time.Duration) error

// Wait calls f(ctx, d).
func (f WaiterFunc) Wait(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// AcceleratedFactory initializes the accelerated backend.
// It returns an error when the backend cannot be used in this environment.
type AcceleratedFactory func() (Waiter, error)
