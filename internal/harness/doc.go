// Package harness runs timing scenarios against an engine on a fake clock.
//
// A scenario describes how the engine is built, the caller work done each
// cycle and how the backend misbehaves, plus the expected outcome. Because
// time only moves when the scenario says so, every sample is exact and a
// run can be compared byte for byte against a golden file.
//
// # Scenario Format
//
//	name: cancel_mid_wait
//	description: "Cancelling a wait records nothing"
//	engine:
//	  target_hz: 90
//	  window: 100
//	  backend: accelerated   # accelerated | unavailable | panic | fallback
//	steps:
//	  - work_ms: 3
//	    repeat: 2
//	  - work_ms: 3
//	    cancel: true
//	expect:
//	  mode: accelerated
//	  history_len: 2
//	  errors:
//	    cancelled: 1
//
// Step fields:
//
//   - work_ms: caller work before the tick (advances the clock)
//   - late_ms: the backend overshoots its wait by this much
//   - fail: the backend wait returns an error
//   - cancel: the context is cancelled while the backend waits
//   - repeat: run the step this many times (default 1)
//
// late_ms, fail and cancel script the backend, so they need a step whose
// work leaves time to wait.
//
// # Backends
//
// The accelerated backend is a scripted waiter on the fake clock. The
// "unavailable" and "panic" backends make the accelerated factory fail or
// panic so the prober falls back; "fallback" skips probing entirely. The
// fallback waiter is scripted the same way, so steps behave identically
// in every mode.
//
// # Golden Files
//
// RunWithGolden serializes the per-tick outcomes and the final snapshot as
// canonical JSON and compares them to testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
