package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/internal/config"
)

// Scenario is one timing scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Engine EngineSpec   `yaml:"engine"`
	Steps  []Step       `yaml:"steps"`
	Expect Expectations `yaml:"expect"`
}

// Backend kinds a scenario can ask for.
const (
	BackendAccelerated = "accelerated"
	BackendUnavailable = "unavailable"
	BackendPanic       = "panic"
	BackendFallback    = "fallback"
)

// EngineSpec describes how the scenario engine is constructed.
type EngineSpec struct {
	TargetHz   float64                  `yaml:"target_hz"`
	Window     int                      `yaml:"window,omitempty"`
	Backend    string                   `yaml:"backend,omitempty"`
	BaselineMs float64                  `yaml:"baseline_ms,omitempty"`
	Thresholds []config.ThresholdConfig `yaml:"thresholds,omitempty"`
}

// Step is one or more caller cycles.
type Step struct {
	WorkMs float64 `yaml:"work_ms,omitempty"`
	LateMs float64 `yaml:"late_ms,omitempty"`
	Fail   bool    `yaml:"fail,omitempty"`
	Cancel bool    `yaml:"cancel,omitempty"`
	Repeat int     `yaml:"repeat,omitempty"`
}

// times returns how many cycles the step runs.
func (s Step) times() int {
	if s.Repeat == 0 {
		return 1
	}
	return s.Repeat
}

// scriptsBackend reports whether the step needs the backend to wait.
func (s Step) scriptsBackend() bool {
	return s.Fail || s.Cancel || s.LateMs > 0
}

// Expectations are checked against the scenario result.
// Unset fields are not checked.
type Expectations struct {
	// ConstructError is the error code engine construction must fail with.
	ConstructError string `yaml:"construct_error,omitempty"`

	Mode        string   `yaml:"mode,omitempty"`
	HistoryLen  *int     `yaml:"history_len,omitempty"`
	HistorySeqs []int64  `yaml:"history_seqs,omitempty"`
	AvgCycleMs  *float64 `yaml:"avg_cycle_ms,omitempty"`
	ToleranceMs float64  `yaml:"tolerance_ms,omitempty"`
	JitterMs    *float64 `yaml:"jitter_ms,omitempty"`
	Overruns    *int     `yaml:"overruns,omitempty"`

	// Health passes when the final health is any of the listed labels.
	Health []string `yaml:"health,omitempty"`

	// Errors counts failed ticks by outcome (cancelled, backend_failure).
	Errors map[string]int `yaml:"errors,omitempty"`
}

// DefaultToleranceMs is used for avg_cycle_ms and jitter_ms when no
// tolerance_ms is given.
const DefaultToleranceMs = 0.001

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
// filter, when non-empty, keeps only scenarios whose name contains it.
func LoadDir(dir, filter string) ([]*Scenario, error) {
	files, err := FindScenarioFiles(dir)
	if err != nil {
		return nil, err
	}

	var scenarios []*Scenario
	for _, path := range files {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if filter != "" && !strings.Contains(s.Name, filter) {
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// FindScenarioFiles returns the .yaml and .yml files directly inside dir.
func FindScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Engine.Backend {
	case "", BackendAccelerated, BackendUnavailable, BackendPanic, BackendFallback:
	default:
		return fmt.Errorf("engine.backend: unknown backend %q", s.Engine.Backend)
	}

	if len(s.Steps) == 0 && s.Expect.ConstructError == "" {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.WorkMs < 0 || step.LateMs < 0 {
			return fmt.Errorf("steps[%d]: work_ms and late_ms must be non-negative", i)
		}
		if step.Repeat < 0 {
			return fmt.Errorf("steps[%d]: repeat must be non-negative", i)
		}
		if step.Fail && step.Cancel {
			return fmt.Errorf("steps[%d]: fail and cancel are mutually exclusive", i)
		}
	}

	for outcome, n := range s.Expect.Errors {
		if outcome != OutcomeCancelled && outcome != OutcomeBackendFailure {
			return fmt.Errorf("expect.errors: unknown outcome %q", outcome)
		}
		if n < 0 {
			return fmt.Errorf("expect.errors.%s: count must be non-negative", outcome)
		}
	}
	if s.Expect.ToleranceMs < 0 {
		return fmt.Errorf("expect.tolerance_ms must be non-negative")
	}
	return nil
}
