// Package runner drives timing engines in caller-owned control loops.
//
// A Job pairs an engine with the work done each cycle. Runner.Run executes
// jobs concurrently, one goroutine per job, and forwards every sample and
// periodic snapshot to a Sink (typically the SQLite telemetry store).
//
// Cancellation of the run context is a normal shutdown: jobs stop after
// the tick in flight, close their run records as cancelled, and Run
// returns nil. A backend failure under the abort policy stops every job
// and is returned from Run.
package runner
