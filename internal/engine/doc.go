// Package engine implements the fixed-rate scheduling engine.
//
// An Engine keeps one caller-driven timeline at a fixed frequency. It does
// not own a goroutine: the caller's loop calls Tick once per iteration and
// the engine waits for whatever is left of the target period, measures the
// cycle and records it in a bounded history.
//
// ARCHITECTURE:
//
// Capability Prober:
// New probes the accelerated backend exactly once. Any failure (missing
// platform support, init error, panic) selects the portable fallback. The
// chosen Mode never changes for the engine's lifetime.
//
// Cycle Driver:
// Tick computes the residual of the current cycle independently of every
// other cycle. There is no phase accumulator, so drift is visible in the
// statistics instead of being corrected silently.
//
// Statistics Aggregator:
// Samples go into a ring buffer of the last N cycles. Snapshot recomputes
// every figure from the buffer on each call.
//
// CRITICAL PATTERNS:
//
// Single timeline:
// Tick must be called from one goroutine. Snapshot and History are safe
// from any goroutine.
//
// No partial cycles:
// A cancelled or failed Tick records nothing.
//
// No silent downgrade:
// An accelerated wait that fails mid-run is returned to the caller as a
// BACKEND_FAILURE. The engine never switches to the fallback after New.
package engine
