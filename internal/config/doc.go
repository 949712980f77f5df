// Package config loads engine configuration files.
//
// A configuration lists the engines to drive and where telemetry goes.
// Files are YAML (decoded strictly; unknown fields are errors) or CUE.
// Either way the decoded document is checked against the embedded CUE
// schema before any engine is built, so range and enum violations are
// reported with the offending field path.
//
// Example:
//
//	engines:
//	  - name: observer
//	    target_hz: 90
//	    window: 100
//	    backend: auto
//	    baseline_ms: 13.2
//	    snapshot_every: 50
//	store:
//	  path: pulse.db
package config
