package record

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/pulse/internal/engine"
)

// Snapshot is the integer-only form of engine.Stats stored for a run.
type Snapshot struct {
	RunID          string `json:"run_id"`
	Seq            int64  `json:"seq"`
	Samples        int64  `json:"samples"`
	TargetNs       int64  `json:"target_ns"`
	AvgCycleNs     int64  `json:"avg_cycle_ns"`
	MinCycleNs     int64  `json:"min_cycle_ns"`
	MaxCycleNs     int64  `json:"max_cycle_ns"`
	JitterNs       int64  `json:"jitter_ns"`
	MaxDeviationNs int64  `json:"max_deviation_ns"`
	ActualMilliHz  int64  `json:"actual_mhz"`
	Overruns       int64  `json:"overruns"`
	PrecisionPPM   int64  `json:"precision_ppm"`
	ImprovementPPM int64  `json:"improvement_ppm"`
	Health         string `json:"health"`
	Mode           string `json:"mode"`
}

// FromStats converts stats taken after sample seq of run runID.
func FromStats(runID string, seq int64, st engine.Stats) Snapshot {
	return Snapshot{
		RunID:          runID,
		Seq:            seq,
		Samples:        int64(st.Samples),
		TargetNs:       msToNs(st.TargetMs),
		AvgCycleNs:     msToNs(st.AvgCycleMs),
		MinCycleNs:     msToNs(st.MinCycleMs),
		MaxCycleNs:     msToNs(st.MaxCycleMs),
		JitterNs:       msToNs(st.JitterMs),
		MaxDeviationNs: msToNs(st.MaxDeviationMs),
		ActualMilliHz:  round(st.ActualHz * 1e3),
		Overruns:       int64(st.Overruns),
		PrecisionPPM:   round(st.Precision * 1e6),
		ImprovementPPM: round(st.ImprovementFactor * 1e6),
		Health:         string(st.Health),
		Mode:           st.Mode,
	}
}

// Stats converts the record back into engine.Stats (to record precision).
func (s Snapshot) Stats() engine.Stats {
	return engine.Stats{
		Samples:           int(s.Samples),
		TargetMs:          nsToMs(s.TargetNs),
		AvgCycleMs:        nsToMs(s.AvgCycleNs),
		MinCycleMs:        nsToMs(s.MinCycleNs),
		MaxCycleMs:        nsToMs(s.MaxCycleNs),
		JitterMs:          nsToMs(s.JitterNs),
		MaxDeviationMs:    nsToMs(s.MaxDeviationNs),
		ActualHz:          float64(s.ActualMilliHz) / 1e3,
		Overruns:          int(s.Overruns),
		Precision:         float64(s.PrecisionPPM) / 1e6,
		Health:            engine.Health(s.Health),
		ImprovementFactor: float64(s.ImprovementPPM) / 1e6,
		Mode:              s.Mode,
	}
}

// Object returns the canonical value of the snapshot.
func (s Snapshot) Object() Object {
	return Object{
		"run_id":           String(s.RunID),
		"seq":              Int(s.Seq),
		"samples":          Int(s.Samples),
		"target_ns":        Int(s.TargetNs),
		"avg_cycle_ns":     Int(s.AvgCycleNs),
		"min_cycle_ns":     Int(s.MinCycleNs),
		"max_cycle_ns":     Int(s.MaxCycleNs),
		"jitter_ns":        Int(s.JitterNs),
		"max_deviation_ns": Int(s.MaxDeviationNs),
		"actual_mhz":       Int(s.ActualMilliHz),
		"overruns":         Int(s.Overruns),
		"precision_ppm":    Int(s.PrecisionPPM),
		"improvement_ppm":  Int(s.ImprovementPPM),
		"health":           String(s.Health),
		"mode":             String(s.Mode),
	}
}

// Canonical returns the RFC 8785 encoding of the snapshot.
func (s Snapshot) Canonical() ([]byte, error) {
	return MarshalCanonical(s.Object())
}

// ID returns the content-addressed identifier of the snapshot.
func (s Snapshot) ID() (string, error) {
	return Hash(DomainSnapshot, s.Object())
}

// ParseSnapshot decodes a stored canonical snapshot.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return s, nil
}

func msToNs(ms float64) int64 {
	return round(ms * 1e6)
}

func nsToMs(ns int64) float64 {
	return float64(ns) / 1e6
}

func round(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}
