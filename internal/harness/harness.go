package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/testutil"
)

// errFactoryUnavailable is what the "unavailable" accelerated backend reports.
var errFactoryUnavailable = errors.New("accelerated backend disabled by scenario")

// Harness drives one scenario engine on a fake clock.
type Harness struct {
	clock  *testutil.FakeClock
	waiter *testutil.ScriptedWaiter
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Every scenario gets a fresh fake clock and scripted backend, so runs are
// reproducible. An error is returned only when the scenario cannot be
// executed as written; failed expectations are reported on the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	clock := testutil.NewFakeClock()
	h := &Harness{
		clock:  clock,
		waiter: testutil.NewScriptedWaiter(clock),
		logger: logger.With("scenario", scenario.Name),
	}

	result := NewResult()
	e, err := engine.New(scenario.Engine.TargetHz, h.engineOptions(scenario)...)
	if err != nil {
		var eerr *engine.Error
		if !errors.As(err, &eerr) {
			return nil, fmt.Errorf("construct engine: %w", err)
		}
		result.ConstructError = string(eerr.Code)
		h.logger.Info("engine construction failed", "code", result.ConstructError)
		for _, msg := range EvaluateExpectations(result, scenario.Expect) {
			result.AddError(msg)
		}
		return result, nil
	}
	h.engine = e
	result.Mode = e.Mode().String()

	if err := h.executeSteps(scenario.Steps, result); err != nil {
		return nil, err
	}

	result.History = e.History()
	result.Stats = e.Snapshot()

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) engineOptions(s *Scenario) []engine.Option {
	ec := config.EngineConfig{
		Name:       s.Name,
		BaselineMs: s.Engine.BaselineMs,
		Thresholds: s.Engine.Thresholds,
	}
	if w := s.Engine.Window; w > 0 {
		ec.Window = &w
	}
	if s.Engine.Backend == BackendFallback {
		ec.Backend = config.BackendFallback
	}

	opts := ec.Options()
	if s.Engine.Window < 0 {
		// Options drops non-positive windows; scenarios may test rejection.
		opts = append(opts, engine.WithWindow(s.Engine.Window))
	}
	return append(opts,
		engine.WithTimeSource(h.clock),
		engine.WithFallback(h.waiter),
		engine.WithAccelerated(h.factory(s.Engine.Backend)),
		engine.WithLogger(h.logger),
	)
}

func (h *Harness) factory(kind string) engine.AcceleratedFactory {
	switch kind {
	case BackendUnavailable:
		return func() (engine.Waiter, error) { return nil, errFactoryUnavailable }
	case BackendPanic:
		return func() (engine.Waiter, error) { panic("accelerated backend init panicked") }
	default:
		return func() (engine.Waiter, error) { return h.waiter, nil }
	}
}

// executeSteps runs every step and records one TickEvent per cycle.
func (h *Harness) executeSteps(steps []Step, result *Result) error {
	target := h.engine.Target()

	// Construction time and the first step coincide on the fake clock.
	h.engine.Restart()

	tick := 0
	for i, step := range steps {
		work := msToDuration(step.WorkMs)
		if step.scriptsBackend() && work >= target {
			return fmt.Errorf("steps[%d]: work_ms %.3f leaves no time to wait (target %.3fms)",
				i, step.WorkMs, h.engine.TargetMs())
		}

		for n := 0; n < step.times(); n++ {
			tick++
			ev, err := h.executeTick(tick, step, work)
			if err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			result.Trace = append(result.Trace, ev)
		}
	}
	return nil
}

func (h *Harness) executeTick(tick int, step Step, work time.Duration) (TickEvent, error) {
	h.clock.Advance(work)

	// Every cycle since Restart begins where the last one ended, so the
	// backend is called exactly when the work fits in the period.
	call := h.waiter.Calls() + 1
	switch {
	case step.Fail:
		h.waiter.FailOn(call, testutil.ErrInjected)
	case step.Cancel:
		h.waiter.BlockOn(call)
	}
	if step.LateMs > 0 {
		h.waiter.LateBy(call, msToDuration(step.LateMs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if step.Cancel {
		go func() {
			select {
			case <-h.waiter.Blocked():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	ev := TickEvent{Tick: tick}
	sample, err := h.engine.Tick(ctx)
	switch {
	case err == nil:
		ev.Outcome = OutcomeSample
		if sample.Overrun {
			ev.Outcome = OutcomeOverrun
		}
		ev.Seq = sample.Seq
		ev.ElapsedNs = int64(sample.Elapsed)
	case engine.IsBackendFailure(err):
		ev.Outcome = OutcomeBackendFailure
	case errors.Is(err, context.Canceled):
		ev.Outcome = OutcomeCancelled
	default:
		return TickEvent{}, fmt.Errorf("tick %d: %w", tick, err)
	}
	ev.HistoryLen = h.engine.Len()

	h.logger.Debug("tick", "tick", tick, "outcome", ev.Outcome, "seq", ev.Seq, "history_len", ev.HistoryLen)
	return ev, nil
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
