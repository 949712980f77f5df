package backend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrUnsupported is returned by NewPrecise on platforms without a usable
// high-resolution monotonic clock.
var ErrUnsupported = errors.New("backend: precise timing not supported on this platform")

// DefaultSpin is the window before the deadline that Precise spends
// yielding instead of sleeping.
const DefaultSpin = 2 * time.Millisecond

// maxResolution is the coarsest monotonic clock resolution Precise accepts.
const maxResolution = time.Microsecond

// monotonicFunc reads a monotonic clock as an offset from an arbitrary origin.
type monotonicFunc func() (time.Duration, error)

// Precise is the hybrid sleep/spin waiter.
type Precise struct {
	spin time.Duration
	now  monotonicFunc
}

// PreciseOption configures a Precise waiter.
type PreciseOption func(*Precise)

// WithSpin sets the spin window. Zero disables spinning.
func WithSpin(d time.Duration) PreciseOption {
	return func(p *Precise) {
		if d >= 0 {
			p.spin = d
		}
	}
}

// NewPrecise initializes the accelerated waiter.
//
// It verifies the platform clock resolution and performs a first clock
// read. Any failure is returned so the caller can fall back.
func NewPrecise(opts ...PreciseOption) (*Precise, error) {
	res, err := clockResolution()
	if err != nil {
		return nil, err
	}
	if res <= 0 || res > maxResolution {
		return nil, fmt.Errorf("backend: monotonic clock resolution %v coarser than %v", res, maxResolution)
	}
	p := &Precise{spin: DefaultSpin, now: monotonicNow}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := p.now(); err != nil {
		return nil, fmt.Errorf("backend: monotonic clock read: %w", err)
	}
	return p, nil
}

// Spin returns the configured spin window.
func (p *Precise) Spin() time.Duration {
	return p.spin
}

// Wait blocks for d. The bulk of the wait is a cancellable timer sleep;
// the last Spin() of it is a yield loop on the monotonic clock.
// A clock read failure aborts the wait with an error.
func (p *Precise) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	start, err := p.now()
	if err != nil {
		return fmt.Errorf("backend: monotonic clock read: %w", err)
	}
	deadline := start + d

	if coarse := d - p.spin; coarse > 0 {
		t := time.NewTimer(coarse)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now, err := p.now()
		if err != nil {
			return fmt.Errorf("backend: monotonic clock read: %w", err)
		}
		if now >= deadline {
			return nil
		}
		runtime.Gosched()
	}
}
