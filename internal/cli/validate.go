package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Engines []string `json:"engines,omitempty"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate an engine configuration file",
		Long: `Validate an engine configuration file without running it.

The file is decoded (YAML or CUE), checked against the embedded schema,
and every engine is constructed once on the fallback backend so that
settings rejected by the engine itself are reported too.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_ = f.Error(ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), nil)
			return WrapExitError(ExitCommandError, "config file not found", err)
		}
		return outputInvalidConfig(f, err)
	}
	f.VerboseLog("Loaded %d engine(s) from %s", len(cfg.Engines), path)

	names := make([]string, 0, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		engineOpts := append(ec.Options(), engine.WithoutAcceleration())
		if _, err := engine.New(ec.TargetHz, engineOpts...); err != nil {
			return outputInvalidConfig(f, err)
		}
		f.VerboseLog("Engine %s: %g Hz", ec.Name, ec.TargetHz)
		names = append(names, ec.Name)
	}

	if opts.Format == "json" {
		return f.Success(ValidationResult{Valid: true, Engines: names})
	}
	fmt.Fprintf(f.Writer, "✓ %s valid (%d engine(s))\n", path, len(names))
	return nil
}

// outputInvalidConfig reports a validation failure (exit code 1).
func outputInvalidConfig(f *OutputFormatter, err error) error {
	result := ValidationResult{Valid: false, Message: err.Error()}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		result.Field = cfgErr.Field
		result.Message = cfgErr.Message
	}

	if f.Format == "json" {
		if encErr := f.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeConfigInvalid, Message: result.Message},
		}); encErr != nil {
			return encErr
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	if result.Field != "" {
		fmt.Fprintf(f.Writer, "  %s: %s\n", result.Field, result.Message)
	} else {
		fmt.Fprintf(f.Writer, "  %s\n", result.Message)
	}
	return WrapExitError(ExitFailure, "validation failed", err)
}
