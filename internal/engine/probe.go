package engine

import (
	"errors"
	"fmt"
)

// ProbeResult is the outcome of a capability probe.
type ProbeResult struct {
	// Mode is the selected backend mode.
	Mode Mode

	// Waiter is the accelerated waiter when Mode is ModeAccelerated, nil otherwise.
	Waiter Waiter

	// Reason explains why the fallback was chosen (a BACKEND_UNAVAILABLE error).
	// Nil when the accelerated backend was selected.
	Reason error
}

var errNoFactory = errors.New("no accelerated backend registered")

// Probe attempts to initialize the accelerated backend once.
//
// Every failure is converted into a ModeFallback decision: a nil factory,
// an init error, a nil waiter, or a panic inside the factory. Probe never
// returns an error and never panics.
func Probe(factory AcceleratedFactory) (result ProbeResult) {
	if factory == nil {
		return fallback(errNoFactory)
	}

	defer func() {
		if r := recover(); r != nil {
			result = fallback(fmt.Errorf("panic during init: %v", r))
		}
	}()

	w, err := factory()
	if err != nil {
		return fallback(err)
	}
	if w == nil {
		return fallback(errors.New("factory returned no waiter"))
	}
	return ProbeResult{Mode: ModeAccelerated, Waiter: w}
}

func fallback(cause error) ProbeResult {
	return ProbeResult{
		Mode: ModeFallback,
		Reason: &Error{
			Code:    ErrCodeBackendUnavailable,
			Message: "accelerated backend could not initialize",
			Err:     cause,
		},
	}
}
