package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/internal/engine"
)

// Backend selection values.
const (
	BackendAuto     = "auto"
	BackendFallback = "fallback"
)

// Config is a parsed configuration file.
type Config struct {
	Engines []EngineConfig `yaml:"engines" json:"engines"`
	Store   StoreConfig    `yaml:"store,omitempty" json:"store,omitempty"`
}

// StoreConfig locates the telemetry database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// EngineConfig describes one engine and how the runner drives it.
type EngineConfig struct {
	Name          string            `yaml:"name" json:"name"`
	TargetHz      float64           `yaml:"target_hz" json:"target_hz"`
	Window        *int              `yaml:"window,omitempty" json:"window,omitempty"`
	Backend       string            `yaml:"backend,omitempty" json:"backend,omitempty"`
	Thresholds    []ThresholdConfig `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	BaselineMs    float64           `yaml:"baseline_ms,omitempty" json:"baseline_ms,omitempty"`
	OnFailure     string            `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	Ticks         int64             `yaml:"ticks,omitempty" json:"ticks,omitempty"`
	SnapshotEvery int64             `yaml:"snapshot_every,omitempty" json:"snapshot_every,omitempty"`
}

// ThresholdConfig is one health cutoff.
type ThresholdConfig struct {
	Cutoff float64 `yaml:"cutoff" json:"cutoff"`
	Label  string  `yaml:"label" json:"label"`
}

// Load reads a configuration file. The format follows the extension:
// .yaml/.yml are YAML, .cue is CUE.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	case ".cue":
		return ParseCUE(data, filepath.Base(path))
	default:
		return nil, fmt.Errorf("%s: unsupported config format (want .yaml, .yml or .cue)", path)
	}
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config is empty")
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the schema and cross-field rules that the
// schema cannot express: unique engine names and the ordering of each
// threshold table.
func Validate(cfg *Config) error {
	if len(cfg.Engines) == 0 {
		return &Error{Field: "engines", Message: "at least one engine is required"}
	}
	// An absent window takes the default; an explicit one must be positive.
	for i, ec := range cfg.Engines {
		if ec.Window != nil && *ec.Window <= 0 {
			return &Error{
				Field:   fmt.Sprintf("engines.%d.window", i),
				Message: fmt.Sprintf("window must be > 0, got %d", *ec.Window),
			}
		}
	}
	if err := validateSchema(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Engines))
	for i, ec := range cfg.Engines {
		field := fmt.Sprintf("engines.%d", i)
		if seen[ec.Name] {
			return &Error{Field: field + ".name", Message: fmt.Sprintf("duplicate engine name %q", ec.Name)}
		}
		seen[ec.Name] = true

		if len(ec.Thresholds) > 0 {
			if err := ec.HealthThresholds().Validate(); err != nil {
				return &Error{Field: field + ".thresholds", Message: err.Error()}
			}
		}
	}
	return nil
}

// HealthThresholds returns the configured table, or the defaults.
func (ec EngineConfig) HealthThresholds() engine.Thresholds {
	if len(ec.Thresholds) == 0 {
		return engine.DefaultThresholds()
	}
	out := make(engine.Thresholds, len(ec.Thresholds))
	for i, th := range ec.Thresholds {
		out[i] = engine.Threshold{Cutoff: th.Cutoff, Label: engine.Health(th.Label)}
	}
	return out
}

// Baseline returns the fallback baseline as a duration.
func (ec EngineConfig) Baseline() time.Duration {
	return time.Duration(math.Round(ec.BaselineMs * float64(time.Millisecond)))
}

// Options converts the engine settings into engine options.
// Callers append their own (logger, time source) after these.
func (ec EngineConfig) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithName(ec.Name),
		engine.WithThresholds(ec.HealthThresholds()),
	}
	if ec.Window != nil {
		opts = append(opts, engine.WithWindow(*ec.Window))
	}
	if ec.BaselineMs > 0 {
		opts = append(opts, engine.WithBaseline(ec.Baseline()))
	}
	if ec.Backend == BackendFallback {
		opts = append(opts, engine.WithoutAcceleration())
	}
	return opts
}

// Error is a configuration validation failure.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}
