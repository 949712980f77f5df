package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/store"
)

// seedRun stores a completed fallback run of elapsedMs cycles with a
// snapshot after every snapshotEvery samples and at the end. It returns the
// database path.
func seedRun(t *testing.T, runID string, window int, snapshotEvery int, elapsedMs ...float64) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "pulse.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	e, err := engine.New(90,
		engine.WithName("observer"),
		engine.WithWindow(window),
		engine.WithoutAcceleration(),
	)
	require.NoError(t, err)
	require.NoError(t, st.BeginRun(ctx, runID, e))

	for i, ms := range elapsedMs {
		elapsed := time.Duration(ms * float64(time.Millisecond))
		s := e.Record(engine.CycleSample{
			Elapsed: elapsed,
			Target:  e.Target(),
			Overrun: elapsed > e.Target(),
		})
		require.NoError(t, st.RecordSample(ctx, runID, s))
		if (i+1)%snapshotEvery == 0 || i == len(elapsedMs)-1 {
			require.NoError(t, st.RecordSnapshot(ctx, runID, s.Seq, e.Snapshot()))
		}
	}
	require.NoError(t, st.EndRun(ctx, runID, store.StatusCompleted, int64(len(elapsedMs)), 0))
	return dbPath
}
