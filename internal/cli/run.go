package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/harness"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	EngineFlags
	Database  string
	Snapshots bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunResult is the output of the run command.
type RunResult struct {
	RunID      string   `json:"run_id"`
	Policy     string   `json:"policy"`
	Operations int      `json:"operations"`
	Steps      int      `json:"steps"`
	Log        []string `json:"log"`
	Digest     string   `json:"digest"`
	Persisted  bool     `json:"persisted"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommandWith(&RunOptions{RootOptions: rootOpts})
}

func newRunCommandWith(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [program-file]",
		Short: "Run a program through the scheduler",
		Long: `Run a program through the scheduler engine and print the execution log.

The program is read from the given file, or from stdin when the file is
omitted or "-". Waits follow the configured timing scaled by --speed;
--instant skips them. With --db every snapshot and log entry is persisted
for the trace and replay commands.

Example:
  loopviz run ./examples/order.js
  loopviz run --instant --snapshots ./examples/order.js
  cat order.js | loopviz run --db ./loopviz.db --policy every-turn`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args, cmd)
		},
	}

	opts.EngineFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for persisted traces")
	cmd.Flags().BoolVar(&opts.Snapshots, "snapshots", false, "print every snapshot as it is published")

	return cmd
}

func runProgram(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	program, err := loadProgramForCommand(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineOpts := append(cfg.Options(),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(opts.RunIDs),
	)

	var rec *store.Recorder
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", fmt.Errorf("%w: %w", errDatabase, err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		rec = store.NewRecorder(ctx, st, logger)
		engineOpts = append(engineOpts, engine.WithObserver(rec))
	}
	if opts.Snapshots {
		engineOpts = append(engineOpts, engine.WithObserver(snapshotPrinter(cmd.OutOrStdout(), opts.Format)))
	}

	trace, err := execute(ctx, program, engineOpts)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := rec.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist trace", err)
		}
	}

	result, err := summarize(trace, cfg.DrainPolicy, rec != nil)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest trace", err)
	}

	return newFormatter(cmd, opts.RootOptions).Result(result, func(w io.Writer) {
		printRunText(w, result)
	})
}

// collectedTrace is the snapshot stream of one completed run.
type collectedTrace struct {
	info      engine.RunInfo
	snapshots []ir.Snapshot
}

// execute runs program on a new engine built from opts and waits for the
// loop to exit. An interrupt resets the engine and fails the command.
func execute(ctx context.Context, program string, opts []engine.Option) (collectedTrace, error) {
	var trace collectedTrace
	eng := engine.New(append(opts, engine.WithObserver(&traceCollector{trace: &trace}))...)

	done := eng.Run(program)
	select {
	case <-done:
	case <-ctx.Done():
		eng.Reset()
		<-done
		return collectedTrace{}, WrapExitError(ExitFailure, "run interrupted", ctx.Err())
	}

	if n := len(trace.snapshots); n == 0 || trace.snapshots[n-1].Phase != ir.PhaseFinish {
		return collectedTrace{}, NewExitError(ExitFailure, "run did not complete")
	}
	return trace, nil
}

// traceCollector keeps the snapshots of the run it saw start.
type traceCollector struct {
	engine.NoopObserver
	trace *collectedTrace
}

func (c *traceCollector) OnRunStart(info engine.RunInfo) {
	c.trace.info = info
	c.trace.snapshots = c.trace.snapshots[:0]
}

func (c *traceCollector) OnSnapshot(s ir.Snapshot) {
	if s.RunID == "" || s.RunID != c.trace.info.RunID {
		return
	}
	c.trace.snapshots = append(c.trace.snapshots, s)
}

func summarize(trace collectedTrace, policy engine.DrainPolicy, persisted bool) (RunResult, error) {
	digest, err := ir.TraceDigest(trace.snapshots)
	if err != nil {
		return RunResult{}, err
	}
	last := trace.snapshots[len(trace.snapshots)-1]
	return RunResult{
		RunID:      trace.info.RunID,
		Policy:     string(policy),
		Operations: len(trace.info.Operations),
		Steps:      last.Step,
		Log:        last.Log,
		Digest:     digest,
		Persisted:  persisted,
	}, nil
}

func printRunText(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "Run %s (%s, %d operations)\n", r.RunID, r.Policy, r.Operations)
	if len(r.Log) == 0 {
		fmt.Fprintln(w, "  (empty log)")
	}
	for i, label := range r.Log {
		fmt.Fprintf(w, "  %d. %s\n", i+1, label)
	}
	fmt.Fprintf(w, "Steps: %d\n", r.Steps)
	if r.Persisted {
		fmt.Fprintln(w, "Trace persisted.")
	}
}

// snapshotPrinter writes each snapshot as it is published: one trace line in
// text mode, one JSON object per line in json mode.
func snapshotPrinter(w io.Writer, format string) engine.Observer {
	if format == "json" {
		enc := json.NewEncoder(w)
		return engine.SnapshotFunc(func(s ir.Snapshot) {
			if err := enc.Encode(s); err != nil {
				slog.Warn("snapshot not printed", "seq", s.Seq, "error", err)
			}
		})
	}
	return engine.SnapshotFunc(func(s ir.Snapshot) {
		_, _ = w.Write(harness.FormatTrace([]ir.Snapshot{s}))
	})
}
