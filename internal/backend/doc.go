// Package backend provides the waiters the timing engine can select.
//
// Sleeper is the portable fallback: a timer raced against the context.
//
// Precise is the accelerated backend: it sleeps on a timer until a short
// spin window before the deadline, then yields in a loop on the raw
// monotonic clock until the deadline passes. It is only available where
// the platform exposes a high-resolution monotonic clock (linux).
package backend
