package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/engine"
)

func TestGoldenBytes_ConstructError(t *testing.T) {
	r := NewResult()
	r.ConstructError = "CONFIGURATION_ERROR"

	data, err := GoldenBytes("zero", r)
	require.NoError(t, err)
	assert.Equal(t, `{"construct_error":"CONFIGURATION_ERROR","scenario":"zero"}`, string(data))
}

func TestGoldenBytes_OmitsSeqForFailedTicks(t *testing.T) {
	r := NewResult()
	r.Mode = "accelerated"
	r.Trace = []TickEvent{
		{Tick: 1, Outcome: OutcomeSample, Seq: 1, ElapsedNs: 10, HistoryLen: 1},
		{Tick: 2, Outcome: OutcomeBackendFailure, HistoryLen: 1},
	}
	r.History = []engine.CycleSample{{Seq: 1, Elapsed: 10, Target: 10}}
	r.Stats = engine.Stats{Samples: 1, Health: engine.HealthOptimal, Mode: "accelerated"}

	data, err := GoldenBytes("s", r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"history_len":1,"outcome":"backend_failure","tick":2}`)
	assert.Contains(t, string(data), `"run_id":"s","samples":1,"seq":1`)
}

func TestGoldenBytes_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "overrun_jitter")

	r1, err := Run(s)
	require.NoError(t, err)
	r2, err := Run(s)
	require.NoError(t, err)

	b1, err := GoldenBytes(s.Name, r1)
	require.NoError(t, err)
	b2, err := GoldenBytes(s.Name, r2)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}
