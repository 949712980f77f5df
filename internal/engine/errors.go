package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure reported by the timing engine.
//
// Errors include:
//   - Configuration: invalid construction parameters (fatal for New)
//   - Backend unavailable: accelerated backend could not initialize
//   - Backend failure: the selected backend failed during a wait
//   - Insufficient data: statistics requested with no samples
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Engine is the name of the affected engine, if known.
	Engine string

	// Tick is the 1-based tick attempt that failed (backend failures only).
	Tick int64

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates invalid construction parameters.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeBackendUnavailable indicates the accelerated backend failed to initialize.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// ErrCodeBackendFailure indicates the selected backend failed mid-wait.
	ErrCodeBackendFailure ErrorCode = "BACKEND_FAILURE"

	// ErrCodeInsufficientData indicates statistics were requested with no samples.
	ErrCodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Engine != "" && e.Tick > 0:
		msg = fmt.Sprintf("%s (engine=%s, tick=%d)", msg, e.Engine, e.Tick)
	case e.Engine != "":
		msg = fmt.Sprintf("%s (engine=%s)", msg, e.Engine)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsBackendUnavailable returns true if err reports a failed backend probe.
func IsBackendUnavailable(err error) bool {
	return hasCode(err, ErrCodeBackendUnavailable)
}

// IsBackendFailure returns true if err is a mid-run backend failure.
func IsBackendFailure(err error) bool {
	return hasCode(err, ErrCodeBackendFailure)
}

// IsInsufficientData returns true if err reports an empty history.
func IsInsufficientData(err error) bool {
	return hasCode(err, ErrCodeInsufficientData)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newConfigError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewBackendFailure creates an Error for a backend wait that failed on a tick.
func NewBackendFailure(engine string, tick int64, cause error) *Error {
	return &Error{
		Code:    ErrCodeBackendFailure,
		Message: "backend wait failed",
		Engine:  engine,
		Tick:    tick,
		Err:     cause,
	}
}
