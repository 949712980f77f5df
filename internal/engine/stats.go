package engine

import (
	"math"
	"time"
)

// Stats is the query-only view of an engine's recent timing.
// It is recomputed from the history on every Snapshot call.
type Stats struct {
	Samples           int     `json:"samples"`
	TargetMs          float64 `json:"target_ms"`
	AvgCycleMs        float64 `json:"avg_cycle_time_ms"`
	MinCycleMs        float64 `json:"min_cycle_ms"`
	MaxCycleMs        float64 `json:"max_cycle_ms"`
	JitterMs          float64 `json:"jitter_ms"`
	MaxDeviationMs    float64 `json:"max_deviation_ms"`
	ActualHz          float64 `json:"actual_hz"`
	Overruns          int     `json:"overruns"`
	Precision         float64 `json:"timing_precision"`
	Health            Health  `json:"health"`
	ImprovementFactor float64 `json:"improvement_factor"`
	Mode              string  `json:"mode"`
}

// Sufficient reports whether the stats were computed from at least one sample.
func (s Stats) Sufficient() bool {
	return s.Samples > 0
}

// Err returns an INSUFFICIENT_DATA error for the empty-history sentinel,
// nil otherwise.
func (s Stats) Err() error {
	if s.Sufficient() {
		return nil
	}
	return &Error{
		Code:    ErrCodeInsufficientData,
		Message: "no cycles recorded",
	}
}

// StatsInput carries everything Compute needs besides the samples.
type StatsInput struct {
	Target     time.Duration
	Mode       Mode
	Baseline   time.Duration
	Thresholds Thresholds
}

// Compute derives Stats from samples.
//
// Jitter is the population standard deviation of the per-cycle deviation
// from target. Precision is clamp(1 - jitter/target, 0, 1). With no
// samples the result is the HealthUnknown sentinel with zeroed figures.
func Compute(samples []CycleSample, in StatsInput) Stats {
	targetMs := durationMs(in.Target)
	st := Stats{
		Samples:           len(samples),
		TargetMs:          targetMs,
		Health:            HealthUnknown,
		ImprovementFactor: 1.0,
		Mode:              in.Mode.String(),
	}
	if len(samples) == 0 {
		return st
	}

	n := float64(len(samples))
	var sum, devSum float64
	st.MinCycleMs = math.Inf(1)
	for _, s := range samples {
		ms := s.ElapsedMs()
		sum += ms
		devSum += s.DeviationMs()
		st.MinCycleMs = math.Min(st.MinCycleMs, ms)
		st.MaxCycleMs = math.Max(st.MaxCycleMs, ms)
		if dev := math.Abs(s.DeviationMs()); dev > st.MaxDeviationMs {
			st.MaxDeviationMs = dev
		}
		if s.Overrun {
			st.Overruns++
		}
	}
	st.AvgCycleMs = sum / n

	meanDev := devSum / n
	var sq float64
	for _, s := range samples {
		d := s.DeviationMs() - meanDev
		sq += d * d
	}
	st.JitterMs = math.Sqrt(sq / n)

	if st.AvgCycleMs > 0 {
		st.ActualHz = 1000 / st.AvgCycleMs
	}
	if targetMs > 0 {
		st.Precision = clamp01(1 - st.JitterMs/targetMs)
	}

	thresholds := in.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}
	st.Health = thresholds.Classify(st.Precision)

	if in.Mode == ModeAccelerated && in.Baseline > 0 && st.AvgCycleMs > 0 {
		st.ImprovementFactor = durationMs(in.Baseline) / st.AvgCycleMs
	}
	return st
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
