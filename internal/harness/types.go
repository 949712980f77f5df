package harness

import (
	"github.com/roach88/pulse/internal/engine"
)

// Tick outcomes.
const (
	OutcomeSample         = "sample"
	OutcomeOverrun        = "overrun"
	OutcomeCancelled      = "cancelled"
	OutcomeBackendFailure = "backend_failure"
)

// TickEvent is the outcome of one cycle.
type TickEvent struct {
	Tick       int    `json:"tick"`
	Outcome    string `json:"outcome"`
	Seq        int64  `json:"seq,omitempty"`
	ElapsedNs  int64  `json:"elapsed_ns,omitempty"`
	HistoryLen int    `json:"history_len"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation holds.
	Pass bool `json:"pass"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ConstructError is the code of the construction failure, if any.
	ConstructError string `json:"construct_error,omitempty"`

	Mode    string               `json:"mode,omitempty"`
	Trace   []TickEvent          `json:"trace"`
	History []engine.CycleSample `json:"history"`
	Stats   engine.Stats         `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Trace:   []TickEvent{},
		History: []engine.CycleSample{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// LastSeq returns the seq of the newest sample in the history, or 0.
func (r *Result) LastSeq() int64 {
	if len(r.History) == 0 {
		return 0
	}
	return r.History[len(r.History)-1].Seq
}

// count returns how many ticks ended with outcome.
func (r *Result) count(outcome string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Outcome == outcome {
			n++
		}
	}
	return n
}
