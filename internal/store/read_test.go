package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/pulse/internal/engine"
)

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_FilterAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	beginTestRun(t, s, "run-a", "observer")
	beginTestRun(t, s, "run-b", "observer")
	beginTestRun(t, s, "run-c", "narrator")

	all, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	observers, err := s.ListRuns(ctx, "observer", 0)
	if err != nil {
		t.Fatalf("ListRuns(observer) failed: %v", err)
	}
	if len(observers) != 2 {
		t.Errorf("len(observers) = %d, want 2", len(observers))
	}
	for _, r := range observers {
		if r.Engine != "observer" {
			t.Errorf("unexpected engine %q in filtered list", r.Engine)
		}
	}

	limited, err := s.ListRuns(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListRuns(limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(limited) = %d, want 1", len(limited))
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("runs = %v, want empty non-nil slice", runs)
	}
}

func TestLoadSamples_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1", "observer")
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		if err := s.RecordSample(ctx, "run-1", createTestSample(seq, float64(seq), 11)); err != nil {
			t.Fatalf("RecordSample(%d) failed: %v", seq, err)
		}
	}

	samples, err := s.LoadSamples(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSamples() failed: %v", err)
	}
	for i, sample := range samples {
		if sample.Seq != int64(i+1) {
			t.Errorf("samples[%d].Seq = %d, want %d", i, sample.Seq, i+1)
		}
	}
}

func TestLoadSamples_ReplaysToSameStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	e := beginTestRun(t, s, "run-1", "observer")

	for i := int64(1); i <= 20; i++ {
		sample := e.Record(engine.CycleSample{
			Elapsed: e.Target() + time.Duration(i%3)*100*time.Microsecond,
			Target:  e.Target(),
		})
		if sample.Seq != i {
			t.Fatalf("Record() seq = %d, want %d", sample.Seq, i)
		}
		if err := s.RecordSample(ctx, "run-1", sample); err != nil {
			t.Fatalf("RecordSample() failed: %v", err)
		}
	}
	live := e.Snapshot()

	samples, err := s.LoadSamples(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSamples() failed: %v", err)
	}
	replayed := engine.Compute(samples, engine.StatsInput{
		Target:     e.Target(),
		Mode:       e.Mode(),
		Thresholds: e.Thresholds(),
	})

	if replayed != live {
		t.Errorf("replayed stats differ:\n got %+v\nwant %+v", replayed, live)
	}
}

func TestSnapshots_AllInOrder(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1", "observer")
	ctx := context.Background()

	for _, seq := range []int64{20, 10, 30} {
		st := engine.Stats{Samples: int(seq), Health: engine.HealthOptimal, Mode: "fallback"}
		if err := s.RecordSnapshot(ctx, "run-1", seq, st); err != nil {
			t.Fatalf("RecordSnapshot(%d) failed: %v", seq, err)
		}
	}

	snaps, err := s.Snapshots(ctx, "run-1")
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("len(snaps) = %d, want 3", len(snaps))
	}
	for i, want := range []int64{10, 20, 30} {
		if snaps[i].Snapshot.Seq != want {
			t.Errorf("snaps[%d].Seq = %d, want %d", i, snaps[i].Snapshot.Seq, want)
		}
		id, err := snaps[i].Snapshot.ID()
		if err != nil {
			t.Fatalf("ID() failed: %v", err)
		}
		if id != snaps[i].ID {
			t.Errorf("stored id %q does not match recomputed %q", snaps[i].ID, id)
		}
	}

	latest, err := s.LatestSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LatestSnapshot() failed: %v", err)
	}
	if latest.Snapshot.Seq != 30 {
		t.Errorf("latest seq = %d, want 30", latest.Snapshot.Seq)
	}
}

func TestLatestSnapshot_NotFound(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1", "observer")

	_, err := s.LatestSnapshot(context.Background(), "run-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestSnapshot() error = %v, want ErrNotFound", err)
	}
}

func TestRunParams_MatchEngine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	e := beginTestRun(t, s, "run-params", "observer")

	run, err := s.GetRun(ctx, "run-params")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	params, err := run.Params()
	if err != nil {
		t.Fatalf("Params() failed: %v", err)
	}
	if params.Name != "observer" {
		t.Errorf("Name = %q, want observer", params.Name)
	}
	if params.TargetNs != int64(e.Target()) {
		t.Errorf("TargetNs = %d, want %d", params.TargetNs, int64(e.Target()))
	}
	if params.Window != int64(e.Window()) {
		t.Errorf("Window = %d, want %d", params.Window, e.Window())
	}
	hash, err := params.Hash()
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	if hash != run.ConfigHash {
		t.Errorf("Params().Hash() = %s, want stored config hash %s", hash, run.ConfigHash)
	}
}
