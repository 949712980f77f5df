package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/record"
	"github.com/roach88/pulse/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplaySnapshot compares one stored snapshot with its recomputation.
type ReplaySnapshot struct {
	Seq        int64  `json:"seq"`
	StoredID   string `json:"stored_id"`
	ReplayedID string `json:"replayed_id"`
	Match      bool   `json:"match"`
}

// ReplayResult holds the replay result for one run.
type ReplayResult struct {
	RunID         string           `json:"run_id"`
	Samples       int              `json:"samples"`
	ConfigMatch   bool             `json:"config_match"`
	Snapshots     []ReplaySnapshot `json:"snapshots"`
	Deterministic bool             `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute a run's statistics and verify stored snapshots",
		Long: `Recompute every stored snapshot of a run from its stored samples and the
engine parameters the run was started with, then compare content hashes.

Exit codes:
  0 - Every snapshot reproduces exactly
  1 - A snapshot or the config hash differs
  2 - Command error (database or run not found, etc.)

Examples:
  pulse replay --db ./pulse.db --run 01928c4e-...
  pulse replay --db ./pulse.db --run 01928c4e-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to replay (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	result, err := replayRun(ctx, st, run)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: run.ID}
		if !result.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeReplayMismatch, Message: "replay does not reproduce stored snapshots"}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		outputReplayText(f, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s does not replay deterministically", run.ID))
	}
	return nil
}

// replayRun recomputes each stored snapshot from the samples recorded up to
// its seq, windowed exactly as the live engine's history was.
func replayRun(ctx context.Context, st *store.Store, run store.Run) (ReplayResult, error) {
	params, err := run.Params()
	if err != nil {
		return ReplayResult{}, err
	}
	in, err := params.StatsInput()
	if err != nil {
		return ReplayResult{}, err
	}
	hash, err := params.Hash()
	if err != nil {
		return ReplayResult{}, err
	}

	samples, err := st.LoadSamples(ctx, run.ID)
	if err != nil {
		return ReplayResult{}, err
	}
	stored, err := st.Snapshots(ctx, run.ID)
	if err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{
		RunID:       run.ID,
		Samples:     len(samples),
		ConfigMatch: hash == run.ConfigHash,
		Snapshots:   make([]ReplaySnapshot, 0, len(stored)),
	}
	result.Deterministic = result.ConfigMatch

	for _, snap := range stored {
		window := windowAt(samples, snap.Snapshot.Seq, int(params.Window))
		replayed := record.FromStats(run.ID, snap.Snapshot.Seq, engine.Compute(window, in))
		id, err := replayed.ID()
		if err != nil {
			return ReplayResult{}, err
		}
		rs := ReplaySnapshot{
			Seq:        snap.Snapshot.Seq,
			StoredID:   snap.ID,
			ReplayedID: id,
			Match:      id == snap.ID,
		}
		if !rs.Match {
			result.Deterministic = false
		}
		result.Snapshots = append(result.Snapshots, rs)
	}
	return result, nil
}

// windowAt returns the last size samples with seq <= seq.
// samples must be in seq order.
func windowAt(samples []engine.CycleSample, seq int64, size int) []engine.CycleSample {
	end := sort.Search(len(samples), func(i int) bool { return samples[i].Seq > seq })
	start := max(end-size, 0)
	return samples[start:end]
}

func outputReplayText(f *OutputFormatter, result ReplayResult) {
	fmt.Fprintf(f.Writer, "run %s: %d samples, %d snapshots\n",
		result.RunID, result.Samples, len(result.Snapshots))
	if !result.ConfigMatch {
		fmt.Fprintln(f.Writer, "✗ stored config does not match its hash")
	}
	for _, s := range result.Snapshots {
		if s.Match {
			f.VerboseLog("seq %d: %s", s.Seq, s.StoredID)
			continue
		}
		fmt.Fprintf(f.Writer, "✗ seq %d: stored %s, replayed %s\n",
			s.Seq, shortHash(s.StoredID), shortHash(s.ReplayedID))
	}
	if result.Deterministic {
		fmt.Fprintln(f.Writer, "✓ replay reproduces every stored snapshot")
	}
}
