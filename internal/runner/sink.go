package runner

import (
	"context"

	"github.com/roach88/pulse/internal/engine"
)

// Run outcome values passed to Sink.EndRun.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Sink receives the telemetry of each run.
// Implementations must be safe for concurrent use; jobs share one sink.
type Sink interface {
	BeginRun(ctx context.Context, runID string, e *engine.Engine) error
	RecordSample(ctx context.Context, runID string, s engine.CycleSample) error
	RecordSnapshot(ctx context.Context, runID string, seq int64, st engine.Stats) error
	EndRun(ctx context.Context, runID, status string, ticks, failures int64) error
}

// NopSink discards all telemetry.
type NopSink struct{}

func (NopSink) BeginRun(context.Context, string, *engine.Engine) error { return nil }

func (NopSink) RecordSample(context.Context, string, engine.CycleSample) error { return nil }

func (NopSink) RecordSnapshot(context.Context, string, int64, engine.Stats) error { return nil }

func (NopSink) EndRun(context.Context, string, string, int64, int64) error { return nil }
