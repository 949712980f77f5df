// Package store provides SQLite-backed storage for timing telemetry.
//
// The store keeps an append-only record of engine runs:
//   - Runs: one row per engine drive, with its canonical engine parameters,
//     their hash and the outcome
//   - Samples: every recorded cycle, keyed by (run_id, seq)
//   - Snapshots: periodic statistics as canonical JSON, keyed by content hash
//
// # Critical Patterns
//
// Logical ordering:
//   - Samples and snapshots are ordered by the engine's seq, never by time
//   - All sample queries use ORDER BY seq ASC
//
// Idempotent writes:
//   - UNIQUE(run_id, seq) on samples and snapshots
//   - Re-recording the same sample or snapshot is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshot identifiers are computed in internal/record using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package store
