package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/runner"
	"github.com/roach88/pulse/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TargetHz      float64
	Window        int
	Ticks         int64
	Fallback      bool
	ConfigPath    string
	Database      string
	SnapshotEvery int64
	OnFailure     string

	// IDs overrides the run id generator (for testing).
	// If nil, defaults to runner.UUIDv7Generator.
	IDs runner.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one or more engines at a fixed rate",
		Long: `Drive timing engines until their tick budget is spent or the process
receives SIGINT/SIGTERM.

Without --config a single engine is built from --hz, --window and
--fallback. With --config every engine in the file runs concurrently.
With --db, runs, samples and snapshots are written to a SQLite database.

Example:
  pulse run --hz 90 --ticks 900
  pulse run --config engines.yaml --db ./pulse.db
  pulse run --hz 60 --fallback --db /tmp/pulse.db --snapshot-every 60`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngines(opts, cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.TargetHz, "hz", 90, "target frequency in Hz")
	cmd.Flags().IntVar(&opts.Window, "window", engine.DefaultWindow, "number of cycles kept for statistics")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 0, "number of cycles to run (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.Fallback, "fallback", false, "skip the accelerated backend")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "engine configuration file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite telemetry database")
	cmd.Flags().Int64Var(&opts.SnapshotEvery, "snapshot-every", 0, "store a snapshot every N cycles")
	cmd.Flags().StringVar(&opts.OnFailure, "on-failure", string(runner.FailAbort), "backend failure policy (abort|skip)")

	return cmd
}

func runEngines(opts *RunOptions, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr())

	jobs, dbPath, err := buildJobs(opts, cmd, logger)
	if err != nil {
		return err
	}

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	if opts.IDs != nil {
		runnerOpts = append(runnerOpts, runner.WithIDGenerator(opts.IDs))
	}
	if dbPath != "" {
		logger.Info("opening database", "path", dbPath)
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, runner.WithSink(st))
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reports, runErr := runner.New(runnerOpts...).Run(ctx, jobs...)
	if outErr := outputReports(opts, cmd, reports); outErr != nil {
		return outErr
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return nil
}

// buildJobs constructs the engines to drive, either from --config or from
// the single-engine flags. It also resolves the database path: --db wins
// over the config's store.path.
func buildJobs(opts *RunOptions, cmd *cobra.Command, logger *slog.Logger) ([]runner.Job, string, error) {
	if opts.ConfigPath == "" {
		policy, err := runner.ParseFailurePolicy(opts.OnFailure)
		if err != nil {
			return nil, "", WrapExitError(ExitCommandError, "invalid --on-failure", err)
		}
		engineOpts := []engine.Option{
			engine.WithWindow(opts.Window),
			engine.WithLogger(logger),
		}
		if opts.Fallback {
			engineOpts = append(engineOpts, engine.WithoutAcceleration())
		}
		e, err := engine.New(opts.TargetHz, engineOpts...)
		if err != nil {
			return nil, "", WrapExitError(ExitCommandError, "invalid engine settings", err)
		}
		job := runner.Job{
			Engine:        e,
			Ticks:         opts.Ticks,
			SnapshotEvery: opts.SnapshotEvery,
			OnFailure:     policy,
		}
		return []runner.Job{job}, opts.Database, nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", WrapExitError(ExitCommandError, "config file not found", err)
		}
		return nil, "", WrapExitError(ExitCommandError, "invalid config", err)
	}
	logger.Debug("config loaded", "path", opts.ConfigPath, "engines", len(cfg.Engines))

	jobs := make([]runner.Job, 0, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		engineOpts := append(ec.Options(), engine.WithLogger(logger))
		if opts.Fallback {
			engineOpts = append(engineOpts, engine.WithoutAcceleration())
		}
		e, err := engine.New(ec.TargetHz, engineOpts...)
		if err != nil {
			return nil, "", WrapExitError(ExitCommandError, fmt.Sprintf("engine %s", ec.Name), err)
		}
		policy, err := runner.ParseFailurePolicy(ec.OnFailure)
		if err != nil {
			return nil, "", WrapExitError(ExitCommandError, fmt.Sprintf("engine %s", ec.Name), err)
		}

		job := runner.Job{
			Engine:        e,
			Ticks:         ec.Ticks,
			SnapshotEvery: ec.SnapshotEvery,
			OnFailure:     policy,
		}
		// Flags given explicitly override every engine in the file.
		if cmd.Flags().Changed("ticks") {
			job.Ticks = opts.Ticks
		}
		if cmd.Flags().Changed("snapshot-every") {
			job.SnapshotEvery = opts.SnapshotEvery
		}
		jobs = append(jobs, job)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	return jobs, dbPath, nil
}

func outputReports(opts *RunOptions, cmd *cobra.Command, reports []runner.Report) error {
	f := opts.formatter(cmd)
	if opts.Format == "json" {
		if reports == nil {
			reports = []runner.Report{}
		}
		return f.Success(reports)
	}

	for _, rep := range reports {
		if rep.RunID == "" {
			continue
		}
		fmt.Fprintf(f.Writer, "%s %s: %s, %d ticks, %d failures\n",
			rep.Job, rep.RunID, rep.Status, rep.Ticks, rep.Failures)
		if !rep.Stats.Sufficient() {
			fmt.Fprintln(f.Writer, "  no cycles recorded")
			continue
		}
		writeStats(f, rep.Stats)
	}
	return nil
}

// writeStats prints a Stats block indented under a heading line.
func writeStats(f *OutputFormatter, st engine.Stats) {
	fmt.Fprintf(f.Writer, "  mode %s, target %.3fms, avg %.3fms (%.2f Hz)\n",
		st.Mode, st.TargetMs, st.AvgCycleMs, st.ActualHz)
	fmt.Fprintf(f.Writer, "  min %.3fms, max %.3fms, jitter %.3fms, max deviation %.3fms\n",
		st.MinCycleMs, st.MaxCycleMs, st.JitterMs, st.MaxDeviationMs)
	fmt.Fprintf(f.Writer, "  overruns %d, precision %.4f, health %s, improvement %.2fx\n",
		st.Overruns, st.Precision, st.Health, st.ImprovementFactor)
}
