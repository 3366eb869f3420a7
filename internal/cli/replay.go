package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/config"
	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single stored run.
type ReplayRunResult struct {
	RunID         string   `json:"run_id"`
	Policy        string   `json:"policy"`
	StoredDigest  string   `json:"stored_digest"`
	ReplayDigest  string   `json:"replay_digest,omitempty"`
	StoredLog     []string `json:"stored_log"`
	ReplayLog     []string `json:"replay_log,omitempty"`
	Skipped       bool     `json:"skipped"`
	Deterministic bool     `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run stored programs and verify determinism",
		Long: `Re-run every completed stored run and verify that it reproduces the
same trace.

Each run's program is executed again under its stored drain policy with
every wait skipped. The new snapshot stream is digested and compared with
the digest of the stored one; run ids and timestamps are ignored.
Incomplete runs are reported as skipped.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  loopviz replay --db ./loopviz.db
  loopviz replay --db ./loopviz.db --run 01929b6e-...
  loopviz replay --db ./loopviz.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}

	for _, id := range runIDs {
		logger.Debug("replaying run", "run_id", id)
		runResult, err := replayRun(ctx, st, id, logger)
		if err != nil {
			return err
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Skipped && !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	err = newFormatter(cmd, opts.RootOptions).Result(result, func(w io.Writer) {
		printReplayText(w, result, opts.Verbose)
	})
	if err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the stored trace")
	}
	return nil
}

// replayRun executes one stored run again and compares digests.
func replayRun(ctx context.Context, st *store.Store, runID string, logger *slog.Logger) (ReplayRunResult, error) {
	state, err := st.GetRunState(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return ReplayRunResult{}, WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID), err)
	}
	if err != nil {
		return ReplayRunResult{}, WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", runID), err)
	}

	out := ReplayRunResult{
		RunID:        runID,
		Policy:       state.Run.DrainPolicy,
		StoredDigest: state.Digest,
		StoredLog:    state.Labels(),
	}
	if !state.Run.Completed {
		out.Skipped = true
		return out, nil
	}

	policy, err := engine.ParseDrainPolicy(state.Run.DrainPolicy)
	if err != nil {
		return ReplayRunResult{}, WrapExitError(ExitCommandError, fmt.Sprintf("run %s has an unusable policy", runID), err)
	}

	cfg := config.Default()
	cfg.DrainPolicy = policy
	if state.Run.Speed > 0 {
		cfg.Speed = state.Run.Speed
	}
	cfg.Timing.Stage, cfg.Timing.Execute, cfg.Timing.Turn = 0, 0, 0

	trace, err := execute(ctx, state.Run.Program, append(cfg.Options(), engine.WithLogger(logger)))
	if err != nil {
		return ReplayRunResult{}, err
	}
	digest, err := ir.TraceDigest(trace.snapshots)
	if err != nil {
		return ReplayRunResult{}, WrapExitError(ExitFailure, "failed to digest replayed trace", err)
	}

	out.ReplayDigest = digest
	out.ReplayLog = trace.snapshots[len(trace.snapshots)-1].Log
	out.Deterministic = digest == state.Digest && slices.Equal(out.ReplayLog, out.StoredLog)
	logger.Debug("replay finished", "run_id", runID, "deterministic", out.Deterministic)
	return out, nil
}

func printReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	for _, r := range result.Runs {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "- %s skipped (incomplete)\n", r.RunID)
		case r.Deterministic:
			fmt.Fprintf(w, "✓ %s deterministic (%s, %d labels)\n", r.RunID, r.Policy, len(r.StoredLog))
		default:
			fmt.Fprintf(w, "✗ %s diverged (%s)\n", r.RunID, r.Policy)
			fmt.Fprintf(w, "    stored: %v\n", r.StoredLog)
			fmt.Fprintf(w, "    replay: %v\n", r.ReplayLog)
		}
		if verbose && !r.Skipped {
			fmt.Fprintf(w, "    digest: %s -> %s\n", r.StoredDigest, r.ReplayDigest)
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d runs deterministic.\n", result.TotalRuns)
	} else {
		fmt.Fprintln(w, "Determinism check FAILED.")
	}
}
