package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pulse/internal/engine"
)

// EngineParams is the integer-only description of an engine's
// construction parameters. Runs with equal config hashes are comparable,
// and the params are enough to recompute a run's statistics from its
// stored samples.
type EngineParams struct {
	Name       string            `json:"name"`
	TargetNs   int64             `json:"target_ns"`
	Window     int64             `json:"window"`
	Mode       string            `json:"mode"`
	BaselineNs int64             `json:"baseline_ns"`
	Thresholds []ThresholdParams `json:"thresholds"`
}

// ThresholdParams is one health cutoff in parts per million.
type ThresholdParams struct {
	CutoffPPM int64  `json:"cutoff_ppm"`
	Label     string `json:"label"`
}

// ParamsOf captures the parameters of e.
func ParamsOf(e *engine.Engine) EngineParams {
	ths := e.Thresholds()
	thresholds := make([]ThresholdParams, len(ths))
	for i, th := range ths {
		thresholds[i] = ThresholdParams{CutoffPPM: round(th.Cutoff * 1e6), Label: string(th.Label)}
	}
	return EngineParams{
		Name:       e.Name(),
		TargetNs:   int64(e.Target()),
		Window:     int64(e.Window()),
		Mode:       e.Mode().String(),
		BaselineNs: int64(e.Baseline()),
		Thresholds: thresholds,
	}
}

// Object returns the canonical value of the params.
func (p EngineParams) Object() Object {
	thresholds := make(Array, len(p.Thresholds))
	for i, th := range p.Thresholds {
		thresholds[i] = Object{
			"cutoff_ppm": Int(th.CutoffPPM),
			"label":      String(th.Label),
		}
	}
	return Object{
		"name":        String(p.Name),
		"target_ns":   Int(p.TargetNs),
		"window":      Int(p.Window),
		"mode":        String(p.Mode),
		"baseline_ns": Int(p.BaselineNs),
		"thresholds":  thresholds,
	}
}

// Canonical returns the RFC 8785 encoding of the params.
func (p EngineParams) Canonical() ([]byte, error) {
	return MarshalCanonical(p.Object())
}

// Hash returns the config hash of the params.
func (p EngineParams) Hash() (string, error) {
	return Hash(DomainConfig, p.Object())
}

// StatsInput rebuilds what engine.Compute needs to reproduce the engine's
// statistics.
func (p EngineParams) StatsInput() (engine.StatsInput, error) {
	mode, err := engine.ParseMode(p.Mode)
	if err != nil {
		return engine.StatsInput{}, err
	}
	thresholds := make(engine.Thresholds, len(p.Thresholds))
	for i, th := range p.Thresholds {
		thresholds[i] = engine.Threshold{
			Cutoff: float64(th.CutoffPPM) / 1e6,
			Label:  engine.Health(th.Label),
		}
	}
	return engine.StatsInput{
		Target:     time.Duration(p.TargetNs),
		Mode:       mode,
		Baseline:   time.Duration(p.BaselineNs),
		Thresholds: thresholds,
	}, nil
}

// ParseEngineParams decodes stored canonical params.
func ParseEngineParams(data []byte) (EngineParams, error) {
	var p EngineParams
	if err := json.Unmarshal(data, &p); err != nil {
		return EngineParams{}, fmt.Errorf("parse engine params: %w", err)
	}
	return p, nil
}

// ConfigHash hashes the parameters of e.
func ConfigHash(e *engine.Engine) (string, error) {
	return ParamsOf(e).Hash()
}
