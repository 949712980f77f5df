package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ScriptedWaiter is a Waiter driven by a FakeClock.
//
// Each Wait call advances the clock by the requested duration plus any
// configured extra latency. Individual calls (1-based) can be scripted to
// fail or to block until the context is cancelled.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedWaiter struct {
	clock *FakeClock

	mu      sync.Mutex
	calls   int
	waited  []time.Duration
	fail    map[int]error
	block   map[int]bool
	latency map[int]time.Duration
	blocked chan struct{}
}

// NewScriptedWaiter creates a waiter that advances clock.
func NewScriptedWaiter(clock *FakeClock) *ScriptedWaiter {
	return &ScriptedWaiter{
		clock:   clock,
		fail:    make(map[int]error),
		block:   make(map[int]bool),
		latency: make(map[int]time.Duration),
		blocked: make(chan struct{}, 16),
	}
}

// FailOn makes the n-th Wait call return err without advancing the clock.
func (w *ScriptedWaiter) FailOn(n int, err error) *ScriptedWaiter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail[n] = err
	return w
}

// BlockOn makes the n-th Wait call block until its context is done.
func (w *ScriptedWaiter) BlockOn(n int) *ScriptedWaiter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.block[n] = true
	return w
}

// LateBy makes the n-th Wait call overshoot by extra.
func (w *ScriptedWaiter) LateBy(n int, extra time.Duration) *ScriptedWaiter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.latency[n] = extra
	return w
}

// Blocked signals each time a scripted call starts blocking.
func (w *ScriptedWaiter) Blocked() <-chan struct{} {
	return w.blocked
}

// Wait implements engine.Waiter.
func (w *ScriptedWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.calls++
	n := w.calls
	failErr := w.fail[n]
	block := w.block[n]
	extra := w.latency[n]
	w.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	if block {
		select {
		case w.blocked <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.clock.Advance(d + extra)
	w.mu.Lock()
	w.waited = append(w.waited, d+extra)
	w.mu.Unlock()
	return nil
}

// Calls returns the number of Wait calls made.
func (w *ScriptedWaiter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Waited returns the durations of completed waits, in call order.
func (w *ScriptedWaiter) Waited() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]time.Duration, len(w.waited))
	copy(out, w.waited)
	return out
}

// ErrInjected is a convenience error for scripted failures.
var ErrInjected = errors.New("testutil: injected backend failure")
