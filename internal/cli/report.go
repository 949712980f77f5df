package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string
	Engine   string
	Limit    int
}

// RunReport is the detail view of one stored run.
type RunReport struct {
	Run        store.Run     `json:"run"`
	Samples    int           `json:"samples"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Stats      *engine.Stats `json:"stats,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored runs and their latest statistics",
		Long: `List the runs stored in a telemetry database, newest first, or show one
run in detail with --run.

Examples:
  pulse report --db ./pulse.db
  pulse report --db ./pulse.db --engine observer --limit 5
  pulse report --db ./pulse.db --run 01928c4e-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "only list runs of this engine")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

// openExisting opens a telemetry database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID != "" {
		return reportRun(ctx, opts, cmd, st)
	}

	runs, err := st.ListRuns(ctx, opts.Engine, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs found in database.")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tENGINE\tHZ\tMODE\tSTATUS\tTICKS\tFAILURES\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Engine, r.TargetHz, r.Mode, r.Status, r.Ticks, r.Failures,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func reportRun(ctx context.Context, opts *ReportOptions, cmd *cobra.Command, st *store.Store) error {
	f := opts.formatter(cmd)

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	samples, err := st.LoadSamples(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load samples", err)
	}
	rep := RunReport{Run: run, Samples: len(samples)}

	snap, err := st.LatestSnapshot(ctx, run.ID)
	switch {
	case err == nil:
		stats := snap.Snapshot.Stats()
		rep.SnapshotID = snap.ID
		rep.Stats = &stats
	case errors.Is(err, store.ErrNotFound):
	default:
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	if opts.Format == "json" {
		return f.Success(rep)
	}

	fmt.Fprintf(f.Writer, "run %s (%s)\n", run.ID, run.Engine)
	fmt.Fprintf(f.Writer, "  %g Hz, window %d, %s backend, config %s\n",
		run.TargetHz, run.Window, run.Mode, shortHash(run.ConfigHash))
	fmt.Fprintf(f.Writer, "  status %s, %d ticks, %d failures, %d samples stored\n",
		run.Status, run.Ticks, run.Failures, rep.Samples)
	if rep.Stats == nil {
		fmt.Fprintln(f.Writer, "  no snapshot stored")
		return nil
	}
	fmt.Fprintf(f.Writer, "  snapshot %s\n", shortHash(rep.SnapshotID))
	writeStats(f, *rep.Stats)
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
