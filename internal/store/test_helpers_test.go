package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pulse/internal/engine"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEngine creates a fallback engine that never touches a real backend.
func createTestEngine(t *testing.T, name string) *engine.Engine {
	t.Helper()
	e, err := engine.New(90, engine.WithName(name), engine.WithoutAcceleration())
	if err != nil {
		t.Fatalf("engine.New() failed: %v", err)
	}
	return e
}

// beginTestRun creates a run row for runID.
func beginTestRun(t *testing.T, s *Store, runID, name string) *engine.Engine {
	t.Helper()
	e := createTestEngine(t, name)
	if err := s.BeginRun(context.Background(), runID, e); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return e
}

// createTestSample creates a sample with millisecond elapsed/target.
func createTestSample(seq int64, elapsedMs, targetMs float64) engine.CycleSample {
	return engine.CycleSample{
		Seq:     seq,
		Elapsed: time.Duration(elapsedMs * float64(time.Millisecond)),
		Target:  time.Duration(targetMs * float64(time.Millisecond)),
		Overrun: elapsedMs > targetMs,
	}
}
