package engine

import (
	"math"
	"slices"
)

// Health is the categorical scheduling-health label derived from precision.
type Health string

const (
	HealthUnknown  Health = "unknown"
	HealthOptimal  Health = "optimal"
	HealthStable   Health = "stable"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

// Threshold maps a minimum timing precision to a health label.
type Threshold struct {
	Cutoff float64 `json:"cutoff" yaml:"cutoff"`
	Label  Health  `json:"label" yaml:"label"`
}

// Thresholds is an ordered table of cutoffs, highest first.
// A precision below every cutoff classifies as HealthCritical.
type Thresholds []Threshold

// DefaultThresholds returns the default health table:
// >=0.9 optimal, >=0.7 stable, >=0.4 degraded, else critical.
func DefaultThresholds() Thresholds {
	return Thresholds{
		{Cutoff: 0.9, Label: HealthOptimal},
		{Cutoff: 0.7, Label: HealthStable},
		{Cutoff: 0.4, Label: HealthDegraded},
	}
}

// Validate checks the table is non-empty, cutoffs lie in [0,1] and are
// strictly descending, and every label is set.
func (t Thresholds) Validate() error {
	if len(t) == 0 {
		return newConfigError("health threshold table is empty")
	}
	for i, th := range t {
		if math.IsNaN(th.Cutoff) || th.Cutoff < 0 || th.Cutoff > 1 {
			return newConfigError("threshold %d: cutoff %v outside [0,1]", i, th.Cutoff)
		}
		if th.Label == "" {
			return newConfigError("threshold %d: label is empty", i)
		}
		if i > 0 && th.Cutoff >= t[i-1].Cutoff {
			return newConfigError("threshold %d: cutoff %v not below previous %v", i, th.Cutoff, t[i-1].Cutoff)
		}
	}
	return nil
}

// Classify returns the label of the first cutoff the precision reaches.
func (t Thresholds) Classify(precision float64) Health {
	for _, th := range t {
		if precision >= th.Cutoff {
			return th.Label
		}
	}
	return HealthCritical
}

// Clone returns a copy of the table.
func (t Thresholds) Clone() Thresholds {
	return slices.Clone(t)
}
