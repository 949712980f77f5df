// Package record provides the canonical, content-addressed form of stored
// timing telemetry.
//
// Snapshots are persisted as RFC 8785 canonical JSON and identified by a
// SHA-256 hash with domain separation, so recomputing statistics from the
// stored samples reproduces the same identifier byte for byte.
//
// Key design constraints:
//   - NO float types in canonical values; durations are integer nanoseconds
//     and ratios are integer parts per million
//   - Strings are NFC normalized at the serialization boundary
//   - Object keys are ordered by UTF-16 code units
package record
