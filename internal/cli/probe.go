package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/engine"
)

// ProbeReport is the output of the probe command.
type ProbeReport struct {
	Mode   string `json:"mode"`
	Reason string `json:"reason,omitempty"`
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	return newProbeCommand(rootOpts, engine.DefaultAccelerated)
}

func newProbeCommand(rootOpts *RootOptions, factory engine.AcceleratedFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report which timing backend this host supports",
		Long: `Initialize the accelerated timing backend once and report the result.

When the accelerated backend cannot start, engines on this host run on the
portable fallback sleeper; the reason is printed alongside the mode.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(rootOpts, factory, cmd)
		},
	}
}

func runProbe(opts *RootOptions, factory engine.AcceleratedFactory, cmd *cobra.Command) error {
	res := engine.Probe(factory)
	report := ProbeReport{Mode: res.Mode.String()}
	if res.Reason != nil {
		report.Reason = res.Reason.Error()
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(report)
	}
	fmt.Fprintf(f.Writer, "backend: %s\n", report.Mode)
	if report.Reason != "" {
		fmt.Fprintf(f.Writer, "reason:  %s\n", report.Reason)
	}
	return nil
}
