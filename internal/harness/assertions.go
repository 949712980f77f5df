package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ExpectationError is a failed expectation with enough context to debug it.
type ExpectationError struct {
	Field    string
	Expected string
	Actual   string
	Trace    []TickEvent
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTicks:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s seq=%d history_len=%d\n", ev.Tick, ev.Outcome, ev.Seq, ev.HistoryLen)
		}
	}
	return buf.String()
}

// EvaluateExpectations checks exp against r and returns one message per
// failed expectation.
func EvaluateExpectations(r *Result, exp Expectations) []string {
	var errs []string
	fail := func(field, expected, actual string) {
		errs = append(errs, (&ExpectationError{
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Trace:    r.Trace,
		}).Error())
	}

	if exp.ConstructError != "" || r.ConstructError != "" {
		if r.ConstructError != exp.ConstructError {
			fail("construct_error", quoted(exp.ConstructError), quoted(r.ConstructError))
		}
		// Nothing else exists to check without an engine.
		return errs
	}

	if exp.Mode != "" && exp.Mode != r.Mode {
		fail("mode", exp.Mode, r.Mode)
	}
	if exp.HistoryLen != nil && *exp.HistoryLen != len(r.History) {
		fail("history_len", fmt.Sprint(*exp.HistoryLen), fmt.Sprint(len(r.History)))
	}
	if exp.HistorySeqs != nil {
		seqs := make([]int64, len(r.History))
		for i, s := range r.History {
			seqs[i] = s.Seq
		}
		if !slices.Equal(seqs, exp.HistorySeqs) {
			fail("history_seqs", fmt.Sprint(exp.HistorySeqs), fmt.Sprint(seqs))
		}
	}

	tolerance := exp.ToleranceMs
	if tolerance == 0 {
		tolerance = DefaultToleranceMs
	}
	if exp.AvgCycleMs != nil && math.Abs(r.Stats.AvgCycleMs-*exp.AvgCycleMs) > tolerance {
		fail("avg_cycle_ms",
			fmt.Sprintf("%.3f ± %.3f", *exp.AvgCycleMs, tolerance),
			fmt.Sprintf("%.3f", r.Stats.AvgCycleMs))
	}
	if exp.JitterMs != nil && math.Abs(r.Stats.JitterMs-*exp.JitterMs) > tolerance {
		fail("jitter_ms",
			fmt.Sprintf("%.3f ± %.3f", *exp.JitterMs, tolerance),
			fmt.Sprintf("%.3f", r.Stats.JitterMs))
	}
	if exp.Overruns != nil && *exp.Overruns != r.Stats.Overruns {
		fail("overruns", fmt.Sprint(*exp.Overruns), fmt.Sprint(r.Stats.Overruns))
	}
	if len(exp.Health) > 0 && !slices.Contains(exp.Health, string(r.Stats.Health)) {
		fail("health", "one of "+strings.Join(exp.Health, ", "), string(r.Stats.Health))
	}

	for _, outcome := range []string{OutcomeCancelled, OutcomeBackendFailure} {
		want, ok := exp.Errors[outcome]
		if !ok {
			continue
		}
		if got := r.count(outcome); got != want {
			fail("errors."+outcome, fmt.Sprint(want), fmt.Sprint(got))
		}
	}
	return errs
}

func quoted(s string) string {
	if s == "" {
		return "none"
	}
	return fmt.Sprintf("%q", s)
}
