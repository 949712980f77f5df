package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ms(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func samplesOf(target time.Duration, elapsed ...time.Duration) []CycleSample {
	out := make([]CycleSample, len(elapsed))
	for i, e := range elapsed {
		out[i] = CycleSample{Seq: int64(i + 1), Elapsed: e, Target: target}
	}
	return out
}

func TestCompute_EmptyIsSentinel(t *testing.T) {
	st := Compute(nil, StatsInput{Target: 10 * time.Millisecond, Mode: ModeFallback})

	assert.False(t, st.Sufficient())
	assert.Equal(t, HealthUnknown, st.Health)
	assert.Equal(t, 0, st.Samples)
	assert.InDelta(t, 10.0, st.TargetMs, 1e-9)
	assert.Equal(t, 1.0, st.ImprovementFactor)
	for name, v := range map[string]float64{
		"avg": st.AvgCycleMs, "jitter": st.JitterMs, "precision": st.Precision,
		"min": st.MinCycleMs, "max": st.MaxCycleMs, "hz": st.ActualHz,
	} {
		assert.False(t, math.IsNaN(v), "%s is NaN", name)
		assert.Equal(t, 0.0, v, "%s should be zero", name)
	}
	assert.True(t, IsInsufficientData(st.Err()))
}

func TestCompute_PerfectCycles(t *testing.T) {
	target := 10 * time.Millisecond
	st := Compute(samplesOf(target, target, target, target), StatsInput{Target: target})

	assert.Equal(t, 3, st.Samples)
	assert.InDelta(t, 10.0, st.AvgCycleMs, 1e-9)
	assert.InDelta(t, 0.0, st.JitterMs, 1e-9)
	assert.InDelta(t, 1.0, st.Precision, 1e-9)
	assert.InDelta(t, 100.0, st.ActualHz, 1e-9)
	assert.Equal(t, HealthOptimal, st.Health)
	assert.NoError(t, st.Err())
}

func TestCompute_JitterIsPopulationStdDev(t *testing.T) {
	target := 10 * time.Millisecond
	st := Compute(samplesOf(target, ms(8), ms(12)), StatsInput{Target: target})

	assert.InDelta(t, 10.0, st.AvgCycleMs, 1e-9)
	assert.InDelta(t, 2.0, st.JitterMs, 1e-9)
	assert.InDelta(t, 0.8, st.Precision, 1e-9)
	assert.Equal(t, HealthStable, st.Health)
	assert.InDelta(t, 8.0, st.MinCycleMs, 1e-9)
	assert.InDelta(t, 12.0, st.MaxCycleMs, 1e-9)
	assert.InDelta(t, 2.0, st.MaxDeviationMs, 1e-9)
}

func TestCompute_SingleOutlierDoesNotDominate(t *testing.T) {
	target := 10 * time.Millisecond
	elapsed := make([]time.Duration, 0, 100)
	for i := 0; i < 99; i++ {
		elapsed = append(elapsed, target)
	}
	elapsed = append(elapsed, ms(20))
	st := Compute(samplesOf(target, elapsed...), StatsInput{Target: target})

	// max-min spread would be 10ms; std-dev is ~1ms
	assert.InDelta(t, 0.995, st.JitterMs, 0.01)
	assert.Equal(t, HealthOptimal, st.Health)
}

func TestCompute_PrecisionClampedAtZero(t *testing.T) {
	target := time.Millisecond
	st := Compute(samplesOf(target, ms(1), ms(50), ms(1), ms(90)), StatsInput{Target: target})

	assert.Equal(t, 0.0, st.Precision)
	assert.Equal(t, HealthCritical, st.Health)
}

func TestCompute_MonotonicHealthOrdering(t *testing.T) {
	target := 10 * time.Millisecond
	// equal averages (10ms), B has more jitter than A
	a := Compute(samplesOf(target, ms(9), ms(11), ms(9), ms(11)), StatsInput{Target: target})
	b := Compute(samplesOf(target, ms(6), ms(14), ms(6), ms(14)), StatsInput{Target: target})

	assert.InDelta(t, a.AvgCycleMs, b.AvgCycleMs, 1e-9)
	assert.Less(t, a.JitterMs, b.JitterMs)
	assert.GreaterOrEqual(t, a.Precision, b.Precision)
}

func TestCompute_Overruns(t *testing.T) {
	target := 10 * time.Millisecond
	samples := samplesOf(target, ms(10), ms(25))
	samples[1].Overrun = true
	st := Compute(samples, StatsInput{Target: target})
	assert.Equal(t, 1, st.Overruns)
}

func TestCompute_ImprovementFactor(t *testing.T) {
	target := 10 * time.Millisecond
	samples := samplesOf(target, target, target)

	t.Run("accelerated with baseline", func(t *testing.T) {
		st := Compute(samples, StatsInput{Target: target, Mode: ModeAccelerated, Baseline: 20 * time.Millisecond})
		assert.InDelta(t, 2.0, st.ImprovementFactor, 1e-9)
	})
	t.Run("accelerated without baseline", func(t *testing.T) {
		st := Compute(samples, StatsInput{Target: target, Mode: ModeAccelerated})
		assert.Equal(t, 1.0, st.ImprovementFactor)
	})
	t.Run("fallback ignores baseline", func(t *testing.T) {
		st := Compute(samples, StatsInput{Target: target, Mode: ModeFallback, Baseline: 20 * time.Millisecond})
		assert.Equal(t, 1.0, st.ImprovementFactor)
	})
}

func TestCompute_CustomThresholds(t *testing.T) {
	target := 10 * time.Millisecond
	th := Thresholds{{Cutoff: 0.99, Label: "strict"}}
	st := Compute(samplesOf(target, ms(9), ms(11)), StatsInput{Target: target, Thresholds: th})
	assert.Equal(t, HealthCritical, st.Health)
}
