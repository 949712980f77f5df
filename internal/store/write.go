package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/record"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// BeginRun inserts a run record for an engine about to be driven.
// The engine's construction parameters are stored in canonical form along
// with their hash, so the run's statistics can be recomputed later.
func (s *Store) BeginRun(ctx context.Context, runID string, e *engine.Engine) error {
	params := record.ParamsOf(e)
	configHash, err := params.Hash()
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	configJSON, err := params.Canonical()
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, engine, target_hz, window_size, mode, config_hash, config, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		e.Name(),
		e.TargetHz(),
		e.Window(),
		e.Mode().String(),
		configHash,
		string(configJSON),
		time.Now().UnixMilli(),
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordSample inserts a cycle sample.
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording a seq is a no-op.
func (s *Store) RecordSample(ctx context.Context, runID string, sample engine.CycleSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples
		(run_id, seq, elapsed_ns, target_ns, overrun)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		sample.Seq,
		int64(sample.Elapsed),
		int64(sample.Target),
		sample.Overrun,
	)
	if err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}

// RecordSnapshot stores statistics taken after sample seq.
func (s *Store) RecordSnapshot(ctx context.Context, runID string, seq int64, st engine.Stats) error {
	_, _, err := s.WriteSnapshot(ctx, record.FromStats(runID, seq, st))
	return err
}

// WriteSnapshot inserts a canonical snapshot and returns its content hash.
// inserted is false when a snapshot for (run_id, seq) already existed.
func (s *Store) WriteSnapshot(ctx context.Context, snap record.Snapshot) (id string, inserted bool, err error) {
	id, err = snap.ID()
	if err != nil {
		return "", false, fmt.Errorf("write snapshot: %w", err)
	}
	data, err := snap.Canonical()
	if err != nil {
		return "", false, fmt.Errorf("write snapshot: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, run_id, seq, health, stats)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		id,
		snap.RunID,
		snap.Seq,
		snap.Health,
		string(data),
	)
	if err != nil {
		return "", false, fmt.Errorf("write snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write snapshot: rows affected: %w", err)
	}
	return id, n > 0, nil
}

// EndRun records the outcome of a run.
func (s *Store) EndRun(ctx context.Context, runID, status string, ticks, failures int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET ended_at = ?, status = ?, ticks = ?, failures = ?
		WHERE id = ?
	`,
		time.Now().UnixMilli(),
		status,
		ticks,
		failures,
		runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end run %s: %w", runID, ErrNotFound)
	}
	return nil
}
