package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/record"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Run is a stored engine run.
type Run struct {
	ID         string    `json:"id"`
	Engine     string    `json:"engine"`
	TargetHz   float64   `json:"target_hz"`
	Window     int       `json:"window"`
	Mode       string    `json:"mode"`
	ConfigHash string    `json:"config_hash"`
	Config     string    `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at,omitzero"`
	Status     string    `json:"status"`
	Ticks      int64     `json:"ticks"`
	Failures   int64     `json:"failures"`
}

// StoredSnapshot is a snapshot together with its content hash.
type StoredSnapshot struct {
	ID       string
	Snapshot record.Snapshot
}

const runColumns = `id, engine, target_hz, window_size, mode, config_hash, config, started_at, ended_at, status, ticks, failures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&r.ID, &r.Engine, &r.TargetHz, &r.Window, &r.Mode, &r.ConfigHash, &r.Config,
		&started, &ended, &r.Status, &r.Ticks, &r.Failures); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		r.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	return r, nil
}

// Params decodes the engine parameters the run was started with.
func (r Run) Params() (record.EngineParams, error) {
	return record.ParseEngineParams([]byte(r.Config))
}

// GetRun reads a single run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs, most recent first. An empty engineName lists all
// engines; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, engineName string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if engineName != "" {
		query += ` WHERE engine = ?`
		args = append(args, engineName)
	}
	query += ` ORDER BY started_at DESC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LoadSamples returns every stored sample of a run in seq order.
func (s *Store) LoadSamples(ctx context.Context, runID string) ([]engine.CycleSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, elapsed_ns, target_ns, overrun
		FROM samples
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	samples := []engine.CycleSample{}
	for rows.Next() {
		var sample engine.CycleSample
		var elapsed, target int64
		if err := rows.Scan(&sample.Seq, &elapsed, &target, &sample.Overrun); err != nil {
			return nil, fmt.Errorf("load samples: %w", err)
		}
		sample.Elapsed = time.Duration(elapsed)
		sample.Target = time.Duration(target)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	return samples, nil
}

// Snapshots returns every stored snapshot of a run in seq order.
func (s *Store) Snapshots(ctx context.Context, runID string) ([]StoredSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stats
		FROM snapshots
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	out := []StoredSnapshot{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		snap, err := record.ParseSnapshot([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		out = append(out, StoredSnapshot{ID: id, Snapshot: snap})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns the snapshot with the highest seq for a run.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (StoredSnapshot, error) {
	var id, data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stats
		FROM snapshots
		WHERE run_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, runID).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSnapshot{}, fmt.Errorf("snapshot for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return StoredSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snap, err := record.ParseSnapshot([]byte(data))
	if err != nil {
		return StoredSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return StoredSnapshot{ID: id, Snapshot: snap}, nil
}
