package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/testutil"
)

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", FailAbort, false},
		{"abort", FailAbort, false},
		{"skip", FailSkip, false},
		{"retry", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFailurePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_CompletesTicks(t *testing.T) {
	job, _ := fakeJob(t, "observer")
	job.Ticks = 10
	job.SnapshotEvery = 5
	sink := newRecordingSink()

	r := New(WithSink(sink), WithIDGenerator(NewFixedGenerator("run-1")))
	reports, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rep := reports[0]
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, "observer", rep.Job)
	assert.Equal(t, StatusCompleted, rep.Status)
	assert.Equal(t, int64(10), rep.Ticks)
	assert.Equal(t, int64(0), rep.Failures)
	assert.Equal(t, 10, rep.Stats.Samples)
	assert.InDelta(t, 10.0, rep.Stats.AvgCycleMs, 1e-9)
	assert.Equal(t, engine.HealthOptimal, rep.Stats.Health)

	assert.Equal(t, []string{"run-1"}, sink.begun)
	assert.Len(t, sink.samples["run-1"], 10)
	for i, s := range sink.samples["run-1"] {
		assert.Equal(t, int64(i+1), s.Seq)
	}

	// Periodic snapshots at 5 and 10, then the final one (also seq 10).
	require.Len(t, sink.snapshots, 3)
	assert.Equal(t, int64(5), sink.snapshots[0].seq)
	assert.Equal(t, int64(10), sink.snapshots[1].seq)
	assert.Equal(t, int64(10), sink.snapshots[2].seq)

	assert.Equal(t, endEvent{status: StatusCompleted, ticks: 10}, sink.ended["run-1"])
}

func TestRun_JobNameDefaultsToEngine(t *testing.T) {
	job, _ := fakeJob(t, "narrator")
	job.Ticks = 1

	reports, err := New().Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "narrator", reports[0].Job)

	job.Name = "custom"
	reports, err = New().Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "custom", reports[0].Job)
}

func TestRun_SkipPolicyCountsFailures(t *testing.T) {
	job, waiter := fakeJob(t, "observer")
	waiter.FailOn(3, testutil.ErrInjected)
	job.Ticks = 5
	job.OnFailure = FailSkip
	sink := newRecordingSink()

	reports, err := New(WithSink(sink), WithIDGenerator(NewFixedGenerator("run-1"))).
		Run(context.Background(), job)
	require.NoError(t, err)

	rep := reports[0]
	assert.Equal(t, StatusCompleted, rep.Status)
	assert.Equal(t, int64(4), rep.Ticks)
	assert.Equal(t, int64(1), rep.Failures)
	assert.Len(t, sink.samples["run-1"], 4)
	assert.Equal(t, endEvent{status: StatusCompleted, ticks: 4, failures: 1}, sink.ended["run-1"])
}

func TestRun_AbortPolicyStopsAllJobs(t *testing.T) {
	failing, failingWaiter := fakeJob(t, "failing")
	failingWaiter.FailOn(2, testutil.ErrInjected)
	failing.Ticks = 10

	blocked, blockedWaiter := fakeJob(t, "blocked")
	blockedWaiter.BlockOn(1)

	reports, err := New().Run(context.Background(), failing, blocked)
	require.Error(t, err)
	assert.True(t, engine.IsBackendFailure(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	require.Len(t, reports, 2)
	assert.Equal(t, StatusFailed, reports[0].Status)
	assert.Equal(t, int64(1), reports[0].Ticks)
	assert.Equal(t, int64(1), reports[0].Failures)
	assert.Equal(t, StatusCancelled, reports[1].Status)
	assert.Equal(t, int64(0), reports[1].Ticks)
}

func TestRun_CancellationIsCleanShutdown(t *testing.T) {
	job, waiter := fakeJob(t, "observer")
	waiter.BlockOn(3)
	sink := newRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-waiter.Blocked()
		cancel()
	}()

	reports, err := New(WithSink(sink), WithIDGenerator(NewFixedGenerator("run-1"))).Run(ctx, job)
	require.NoError(t, err)

	rep := reports[0]
	assert.Equal(t, StatusCancelled, rep.Status)
	assert.Equal(t, int64(2), rep.Ticks)
	assert.Equal(t, 2, rep.Stats.Samples)
	assert.Equal(t, endEvent{status: StatusCancelled, ticks: 2}, sink.ended["run-1"])

	// The final snapshot is still recorded after cancellation.
	require.Len(t, sink.snapshots, 1)
	assert.Equal(t, int64(2), sink.snapshots[0].seq)
}

func TestRun_BackendTimeoutIsNotCancellation(t *testing.T) {
	job, waiter := fakeJob(t, "observer")
	waiter.FailOn(2, fmt.Errorf("native timer: %w", context.DeadlineExceeded))
	job.Ticks = 5
	sink := newRecordingSink()

	reports, err := New(WithSink(sink), WithIDGenerator(NewFixedGenerator("run-1"))).
		Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, engine.IsBackendFailure(err))

	rep := reports[0]
	assert.Equal(t, StatusFailed, rep.Status)
	assert.Equal(t, int64(1), rep.Ticks)
	assert.Equal(t, int64(1), rep.Failures)
	assert.Equal(t, endEvent{status: StatusFailed, ticks: 1, failures: 1}, sink.ended["run-1"])
}

func TestRun_WorkErrorFailsJob(t *testing.T) {
	job, _ := fakeJob(t, "observer")
	job.Ticks = 5
	workErr := errors.New("work exploded")
	job.Work = func(_ context.Context, iter int64) error {
		if iter == 2 {
			return workErr
		}
		return nil
	}

	reports, err := New().Run(context.Background(), job)
	require.ErrorIs(t, err, workErr)
	assert.Equal(t, StatusFailed, reports[0].Status)
	assert.Equal(t, int64(1), reports[0].Ticks)
}

func TestRun_SinkErrors(t *testing.T) {
	for _, stage := range []string{"begin", "sample"} {
		t.Run(stage, func(t *testing.T) {
			job, _ := fakeJob(t, "observer")
			job.Ticks = 3
			sink := newRecordingSink()
			sink.failOn = stage

			reports, err := New(WithSink(sink)).Run(context.Background(), job)
			require.ErrorIs(t, err, testutil.ErrInjected)
			assert.Equal(t, StatusFailed, reports[0].Status)
		})
	}
}

func TestRun_InvalidJobs(t *testing.T) {
	valid, _ := fakeJob(t, "observer")

	tests := []struct {
		name string
		job  Job
	}{
		{"nil engine", Job{}},
		{"negative ticks", Job{Engine: valid.Engine, Ticks: -1}},
		{"negative snapshot interval", Job{Engine: valid.Engine, SnapshotEvery: -1}},
		{"unknown policy", Job{Engine: valid.Engine, OnFailure: "retry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := New().Run(context.Background(), tt.job)
			assert.Error(t, err)
			assert.Nil(t, reports)
		})
	}
}

func TestRun_DefaultIDsAreUUIDv7(t *testing.T) {
	a, _ := fakeJob(t, "a")
	a.Ticks = 1
	b, _ := fakeJob(t, "b")
	b.Ticks = 1

	reports, err := New().Run(context.Background(), a, b)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.NotEqual(t, reports[0].RunID, reports[1].RunID)
	for _, rep := range reports {
		id, err := uuid.Parse(rep.RunID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	}
}

func TestRun_LogsHealthTransition(t *testing.T) {
	job, waiter := fakeJob(t, "observer", engine.WithWindow(5))
	// Second window deviates by 0,8,0,8,0 ms: jitter ~3.9ms on a 10ms target.
	waiter.LateBy(7, 8*time.Millisecond).LateBy(9, 8*time.Millisecond)
	job.Ticks = 10
	job.SnapshotEvery = 5

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reports, err := New(WithLogger(logger)).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, engine.HealthDegraded, reports[0].Stats.Health)

	out := buf.String()
	assert.Contains(t, out, "health transition")
	assert.Contains(t, out, "from=optimal")
	assert.Contains(t, out, "to=degraded")
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
