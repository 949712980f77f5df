package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roach88/pulse/internal/backend"
)

// Engine is a caller-driven fixed-rate scheduler.
//
// Thread-safety model:
//   - Tick(), Restart(): must be called from exactly one goroutine
//   - Snapshot(), History(), Record(): safe from any goroutine
//
// INVARIANTS:
//   - targetHz > 0 and target never change after New
//   - mode is decided once by Probe inside New
//   - history.Len() <= window
type Engine struct {
	name       string
	targetHz   float64
	target     time.Duration
	mode       Mode
	waiter     Waiter
	reason     error
	baseline   time.Duration
	thresholds Thresholds
	now        TimeSource
	logger     *slog.Logger

	// cycleStart and attempts belong to the ticking goroutine.
	cycleStart time.Time
	attempts   int64

	mu      sync.Mutex
	clock   *Clock
	history *History
}

// DefaultName is used when no name is supplied.
const DefaultName = "engine"

type options struct {
	name         string
	window       int
	thresholds   Thresholds
	baseline     time.Duration
	logger       *slog.Logger
	now          TimeSource
	accelerated  AcceleratedFactory
	fallback     Waiter
	noAccelerate bool
}

// Option configures an Engine at construction.
type Option func(*options)

// WithName labels the engine in logs, errors and stored runs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithWindow sets the history window size.
//
// Default: 100 cycles (DefaultWindow)
func WithWindow(n int) Option {
	return func(o *options) {
		o.window = n
	}
}

// WithThresholds replaces the health threshold table.
func WithThresholds(t Thresholds) Option {
	return func(o *options) {
		o.thresholds = t.Clone()
	}
}

// WithBaseline supplies a previously measured fallback average cycle time.
// Without it the improvement factor is reported as 1.0.
func WithBaseline(d time.Duration) Option {
	return func(o *options) {
		o.baseline = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTimeSource replaces the wall clock. Used by tests and the scenario harness.
func WithTimeSource(ts TimeSource) Option {
	return func(o *options) {
		o.now = ts
	}
}

// WithAccelerated replaces the accelerated backend factory that New probes.
func WithAccelerated(f AcceleratedFactory) Option {
	return func(o *options) {
		o.accelerated = f
	}
}

// WithFallback replaces the portable fallback waiter.
func WithFallback(w Waiter) Option {
	return func(o *options) {
		o.fallback = w
	}
}

// WithoutAcceleration skips the probe and selects the fallback backend.
func WithoutAcceleration() Option {
	return func(o *options) {
		o.noAccelerate = true
	}
}

// DefaultAccelerated probes the platform's precise backend.
func DefaultAccelerated() (Waiter, error) {
	p, err := backend.NewPrecise()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New creates an engine ticking at targetHz.
//
// Construction fails fast with a CONFIGURATION_ERROR for a non-positive or
// non-finite targetHz, a non-positive window, an invalid threshold table or
// a negative baseline. No engine is returned in that case.
//
// On success the accelerated backend has been probed exactly once.
func New(targetHz float64, opts ...Option) (*Engine, error) {
	o := options{
		name:        DefaultName,
		window:      DefaultWindow,
		thresholds:  DefaultThresholds(),
		accelerated: DefaultAccelerated,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if math.IsNaN(targetHz) || math.IsInf(targetHz, 0) || targetHz <= 0 {
		return nil, withEngine(newConfigError("target_hz must be a positive finite number, got %v", targetHz), o.name)
	}
	target := time.Duration(float64(time.Second) / targetHz)
	if target <= 0 {
		return nil, withEngine(newConfigError("target_hz %v is too high to represent", targetHz), o.name)
	}
	if o.window <= 0 {
		return nil, withEngine(newConfigError("window size must be positive, got %d", o.window), o.name)
	}
	if err := o.thresholds.Validate(); err != nil {
		return nil, withEngine(err, o.name)
	}
	if o.baseline < 0 {
		return nil, withEngine(newConfigError("baseline must not be negative, got %v", o.baseline), o.name)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("engine", o.name)

	now := o.now
	if now == nil {
		now = SystemTime{}
	}

	fallbackWaiter := o.fallback
	if fallbackWaiter == nil {
		fallbackWaiter = backend.NewSleeper()
	}

	var probe ProbeResult
	if o.noAccelerate {
		probe = fallback(errors.New("acceleration disabled"))
	} else {
		probe = Probe(o.accelerated)
	}

	e := &Engine{
		name:       o.name,
		targetHz:   targetHz,
		target:     target,
		mode:       probe.Mode,
		reason:     probe.Reason,
		baseline:   o.baseline,
		thresholds: o.thresholds,
		now:        now,
		logger:     logger,
		clock:      NewClock(),
		history:    NewHistory(o.window),
	}
	if probe.Mode == ModeAccelerated {
		e.waiter = probe.Waiter
	} else {
		e.waiter = fallbackWaiter
	}
	e.cycleStart = now.Now()

	if probe.Reason != nil {
		logger.Info("timing backend selected", "mode", e.mode.String(), "target_hz", targetHz, "reason", probe.Reason)
	} else {
		logger.Info("timing backend selected", "mode", e.mode.String(), "target_hz", targetHz)
	}
	return e, nil
}

func withEngine(err error, name string) error {
	var e *Error
	if errors.As(err, &e) && e.Engine == "" {
		e.Engine = name
	}
	return err
}

// Name returns the engine's label.
func (e *Engine) Name() string { return e.name }

// TargetHz returns the requested frequency.
func (e *Engine) TargetHz() float64 { return e.targetHz }

// Target returns the target period (1/target_hz), computed once at construction.
func (e *Engine) Target() time.Duration { return e.target }

// TargetMs returns the target period in milliseconds.
func (e *Engine) TargetMs() float64 { return durationMs(e.target) }

// Mode returns the backend mode chosen at construction.
func (e *Engine) Mode() Mode { return e.mode }

// ProbeReason returns why the fallback was chosen, or nil.
func (e *Engine) ProbeReason() error { return e.reason }

// Window returns the history window size.
func (e *Engine) Window() int { return e.history.Cap() }

// Baseline returns the configured fallback baseline (zero if none).
func (e *Engine) Baseline() time.Duration { return e.baseline }

// Thresholds returns a copy of the health threshold table.
func (e *Engine) Thresholds() Thresholds { return e.thresholds.Clone() }

// Restart begins a new cycle at the current time.
// Call it when the caller's loop starts long after New.
func (e *Engine) Restart() {
	e.cycleStart = e.now.Now()
}

// Tick completes one cycle.
//
// It waits for whatever remains of the target period since the previous
// cycle ended, measures the whole cycle and records the sample. When the
// caller is already behind schedule Tick returns immediately with an
// overrun sample; there is no catch-up on later cycles.
//
// If ctx is cancelled before or during the wait, Tick returns an error
// wrapping ctx.Err() and records nothing. Any other backend error is
// returned as a BACKEND_FAILURE and also records nothing, even when it wraps
// a context error of the backend's own while ctx is still live.
func (e *Engine) Tick(ctx context.Context) (CycleSample, error) {
	e.attempts++
	if err := ctx.Err(); err != nil {
		return CycleSample{}, fmt.Errorf("tick cancelled: %w", err)
	}

	start := e.cycleStart
	residual := e.target - e.now.Now().Sub(start)
	overrun := residual <= 0

	if !overrun {
		if err := e.waiter.Wait(ctx, residual); err != nil {
			e.cycleStart = e.now.Now()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return CycleSample{}, fmt.Errorf("tick cancelled: %w", ctxErr)
			}
			ferr := NewBackendFailure(e.name, e.attempts, err)
			e.logger.Warn("backend wait failed", "mode", e.mode.String(), "tick", e.attempts, "error", err)
			return CycleSample{}, ferr
		}
	}

	end := e.now.Now()
	e.cycleStart = end

	sample := e.Record(CycleSample{
		Elapsed: end.Sub(start),
		Target:  e.target,
		Overrun: overrun,
	})
	if overrun {
		e.logger.Debug("cycle overrun", "seq", sample.Seq, "elapsed_ms", sample.ElapsedMs(), "target_ms", sample.TargetMs())
	}
	return sample, nil
}

// Record appends a sample to the history, evicting the oldest at capacity.
// The sample is stamped with the next sequence number, which is returned
// along with the sample. Target is always the engine's period, so one
// window never mixes periods.
func (e *Engine) Record(s CycleSample) CycleSample {
	s.Target = e.target
	e.mu.Lock()
	defer e.mu.Unlock()
	s.Seq = e.clock.Next()
	e.history.Push(s)
	return s
}

// History returns the recorded samples, oldest first.
func (e *Engine) History() []CycleSample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Samples()
}

// Len returns the number of samples in the history.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Len()
}

// Snapshot computes statistics over the current history.
// Calling it twice without an intervening Tick or Record yields equal Stats.
func (e *Engine) Snapshot() Stats {
	return Compute(e.History(), e.statsInput())
}

func (e *Engine) statsInput() StatsInput {
	return StatsInput{
		Target:     e.target,
		Mode:       e.mode,
		Baseline:   e.baseline,
		Thresholds: e.thresholds,
	}
}
