package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pulse/internal/engine"
)

// FailurePolicy decides what a job does when a tick fails in the backend.
type FailurePolicy string

const (
	// FailAbort stops the job and the whole run, returning the failure.
	FailAbort FailurePolicy = "abort"

	// FailSkip counts the failure and carries on with the next cycle.
	FailSkip FailurePolicy = "skip"
)

// ParseFailurePolicy parses "abort", "skip" or "" (abort).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailAbort:
		return FailAbort, nil
	case FailSkip:
		return FailSkip, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
}

// WorkFunc is the caller's per-cycle work, called with the 1-based iteration.
// A non-nil error ends the job as failed.
type WorkFunc func(ctx context.Context, iteration int64) error

// Job is one engine driven by one control loop.
type Job struct {
	// Name labels the job in logs and reports. Defaults to the engine name.
	Name   string
	Engine *engine.Engine
	Work   WorkFunc

	// Ticks bounds the number of cycles; 0 runs until the context ends.
	Ticks int64

	// SnapshotEvery emits a snapshot to the sink every N recorded samples.
	// 0 emits only the final snapshot.
	SnapshotEvery int64

	OnFailure FailurePolicy
}

func (j Job) name() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Engine.Name()
}

// Report summarizes a finished job.
type Report struct {
	RunID    string       `json:"run_id"`
	Job      string       `json:"job"`
	Status   string       `json:"status"`
	Ticks    int64        `json:"ticks"`
	Failures int64        `json:"failures"`
	Stats    engine.Stats `json:"stats"`
}

// Runner executes jobs against a shared sink.
type Runner struct {
	sink   Sink
	logger *slog.Logger
	ids    IDGenerator
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets where run telemetry goes. Default: NopSink.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithLogger sets the runner logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) {
		r.ids = g
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		sink:   NopSink{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives every job concurrently until each finishes its ticks, the
// context is cancelled, or a job aborts. Reports are returned in job order
// and are populated even when Run returns an error.
func (r *Runner) Run(ctx context.Context, jobs ...Job) ([]Report, error) {
	for i, job := range jobs {
		if job.Engine == nil {
			return nil, fmt.Errorf("job %d: nil engine", i)
		}
		if job.Ticks < 0 || job.SnapshotEvery < 0 {
			return nil, fmt.Errorf("job %s: ticks and snapshot interval must be >= 0", job.name())
		}
		if _, err := ParseFailurePolicy(string(job.OnFailure)); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.name(), err)
		}
	}

	reports := make([]Report, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			rep, err := r.runJob(gctx, job)
			mu.Lock()
			reports[i] = rep
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return reports, err
}

func (r *Runner) runJob(ctx context.Context, job Job) (Report, error) {
	e := job.Engine
	rep := Report{
		RunID: r.ids.Generate(),
		Job:   job.name(),
	}
	log := r.logger.With("job", rep.Job, "run_id", rep.RunID)

	if err := r.sink.BeginRun(ctx, rep.RunID, e); err != nil {
		rep.Status = StatusFailed
		return rep, fmt.Errorf("job %s: %w", rep.Job, err)
	}
	log.Info("run started", "target_hz", e.TargetHz(), "mode", e.Mode().String())

	// The engine's cycle clock has been running since construction.
	e.Restart()

	lastHealth := engine.HealthUnknown
	status, runErr := r.loop(ctx, job, &rep, log, &lastHealth)
	rep.Status = status

	// Telemetry for the tail of a cancelled run must still land.
	endCtx := context.WithoutCancel(ctx)
	rep.Stats = e.Snapshot()
	if rep.Stats.Sufficient() {
		seq := int64(0)
		if h := e.History(); len(h) > 0 {
			seq = h[len(h)-1].Seq
		}
		if err := r.sink.RecordSnapshot(endCtx, rep.RunID, seq, rep.Stats); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("job %s: %w", rep.Job, err))
		}
	}
	if err := r.sink.EndRun(endCtx, rep.RunID, status, rep.Ticks, rep.Failures); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("job %s: %w", rep.Job, err))
	}

	log.Info("run finished",
		"status", status,
		"ticks", rep.Ticks,
		"failures", rep.Failures,
		"avg_cycle_ms", rep.Stats.AvgCycleMs,
		"health", string(rep.Stats.Health),
	)
	return rep, runErr
}

// loop runs the cycles of one job and returns its final status.
func (r *Runner) loop(ctx context.Context, job Job, rep *Report, log *slog.Logger, lastHealth *engine.Health) (string, error) {
	e := job.Engine
	for iter := int64(1); job.Ticks == 0 || iter <= job.Ticks; iter++ {
		if ctx.Err() != nil {
			return StatusCancelled, nil
		}

		if job.Work != nil {
			if err := job.Work(ctx, iter); err != nil {
				if ctx.Err() != nil {
					return StatusCancelled, nil
				}
				return StatusFailed, fmt.Errorf("job %s: work: %w", rep.Job, err)
			}
		}

		sample, err := e.Tick(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return StatusCancelled, nil
		case engine.IsBackendFailure(err) && job.OnFailure == FailSkip:
			rep.Failures++
			log.Warn("tick failed, skipping", "iteration", iter, "error", err)
			continue
		default:
			rep.Failures++
			log.Error("tick failed", "iteration", iter, "error", err)
			return StatusFailed, fmt.Errorf("job %s: %w", rep.Job, err)
		}

		rep.Ticks++
		if err := r.sink.RecordSample(ctx, rep.RunID, sample); err != nil {
			return StatusFailed, fmt.Errorf("job %s: %w", rep.Job, err)
		}

		if job.SnapshotEvery > 0 && rep.Ticks%job.SnapshotEvery == 0 {
			st := e.Snapshot()
			if st.Health != *lastHealth && *lastHealth != engine.HealthUnknown {
				log.Warn("health transition",
					"from", string(*lastHealth),
					"to", string(st.Health),
					"precision", st.Precision,
					"jitter_ms", st.JitterMs,
				)
			}
			*lastHealth = st.Health
			if err := r.sink.RecordSnapshot(ctx, rep.RunID, sample.Seq, st); err != nil {
				return StatusFailed, fmt.Errorf("job %s: %w", rep.Job, err)
			}
		}
	}
	return StatusCompleted, nil
}
