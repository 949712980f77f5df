package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/testutil"
)

// fakeJob builds a 100 Hz job on a fake clock whose work takes 5ms.
func fakeJob(t *testing.T, name string, opts ...engine.Option) (Job, *testutil.ScriptedWaiter) {
	t.Helper()
	clock := testutil.NewFakeClock()
	waiter := testutil.NewScriptedWaiter(clock)
	base := []engine.Option{
		engine.WithName(name),
		engine.WithTimeSource(clock),
		engine.WithFallback(waiter),
		engine.WithoutAcceleration(),
	}
	e, err := engine.New(100, append(base, opts...)...)
	require.NoError(t, err)
	return Job{
		Engine: e,
		Work: func(context.Context, int64) error {
			clock.Advance(5 * time.Millisecond)
			return nil
		},
	}, waiter
}

type snapshotEvent struct {
	runID string
	seq   int64
	stats engine.Stats
}

type endEvent struct {
	status          string
	ticks, failures int64
}

// recordingSink captures everything the runner sends.
type recordingSink struct {
	mu        sync.Mutex
	begun     []string
	samples   map[string][]engine.CycleSample
	snapshots []snapshotEvent
	ended     map[string]endEvent
	failOn    string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		samples: make(map[string][]engine.CycleSample),
		ended:   make(map[string]endEvent),
	}
}

func (s *recordingSink) BeginRun(_ context.Context, runID string, _ *engine.Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "begin" {
		return testutil.ErrInjected
	}
	s.begun = append(s.begun, runID)
	return nil
}

func (s *recordingSink) RecordSample(_ context.Context, runID string, sample engine.CycleSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "sample" {
		return testutil.ErrInjected
	}
	s.samples[runID] = append(s.samples[runID], sample)
	return nil
}

func (s *recordingSink) RecordSnapshot(_ context.Context, runID string, seq int64, st engine.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshotEvent{runID: runID, seq: seq, stats: st})
	return nil
}

func (s *recordingSink) EndRun(_ context.Context, runID, status string, ticks, failures int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended[runID] = endEvent{status: status, ticks: ticks, failures: failures}
	return nil
}
