package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/harness"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Snapshots bool
}

// TraceRunSummary is one line of the run listing.
type TraceRunSummary struct {
	ID             string `json:"id"`
	DrainPolicy    string `json:"drain_policy"`
	OperationCount int    `json:"operation_count"`
	Completed      bool   `json:"completed"`
	FinalStep      int    `json:"final_step"`
	ProgramHash    string `json:"program_hash"`
}

// TraceListResult is the output of the trace command without a run id.
type TraceListResult struct {
	Runs []TraceRunSummary `json:"runs"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run       ir.RunRecord  `json:"run"`
	Log       []ir.LogEntry `json:"log"`
	Snapshots int           `json:"snapshots"`
	LastSeq   int64         `json:"last_seq"`
	Digest    string        `json:"digest"`
	Trace     []string      `json:"trace,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect persisted runs",
		Long: `Inspect runs persisted with "loopviz run --db".

Without a run id, lists every stored run. With a run id, shows the run
header, its execution log with the step each label completed at, and the
trace digest used by replay. --snapshots adds one line per snapshot.

Examples:
  loopviz trace --db ./loopviz.db
  loopviz trace --db ./loopviz.db 01929b6e-...
  loopviz trace --db ./loopviz.db 01929b6e-... --snapshots --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Snapshots, "snapshots", false, "include every snapshot")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		return listRuns(ctx, st, opts, cmd)
	}

	state, err := st.GetRunState(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", args[0]), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := TraceResult{
		Run:       state.Run,
		Log:       state.Log,
		Snapshots: len(state.Snapshots),
		LastSeq:   state.LastSeq,
		Digest:    state.Digest,
	}
	if opts.Snapshots {
		result.Trace = splitLines(string(harness.FormatTrace(state.Snapshots)))
	}

	return newFormatter(cmd, opts.RootOptions).Result(result, func(w io.Writer) {
		printTraceText(w, result, opts.Verbose)
	})
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := TraceListResult{Runs: make([]TraceRunSummary, len(runs))}
	for i, r := range runs {
		result.Runs[i] = TraceRunSummary{
			ID:             r.ID,
			DrainPolicy:    r.DrainPolicy,
			OperationCount: r.OperationCount,
			Completed:      r.Completed,
			FinalStep:      r.FinalStep,
			ProgramHash:    r.ProgramHash,
		}
	}

	return newFormatter(cmd, opts.RootOptions).Result(result, func(w io.Writer) {
		printRunList(w, result)
	})
}

func printRunList(w io.Writer, result TraceListResult) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}
	for _, r := range result.Runs {
		status := "complete"
		if !r.Completed {
			status = "incomplete"
		}
		fmt.Fprintf(w, "%s  %-12s  ops=%-3d steps=%-3d %s\n", r.ID, r.DrainPolicy, r.OperationCount, r.FinalStep, status)
	}
}

func printTraceText(w io.Writer, r TraceResult, verbose bool) {
	status := "complete"
	if !r.Run.Completed {
		status = "incomplete"
	}
	fmt.Fprintf(w, "Run: %s\n", r.Run.ID)
	fmt.Fprintf(w, "Policy: %s  Operations: %d  Steps: %d  Status: %s\n",
		r.Run.DrainPolicy, r.Run.OperationCount, r.Run.FinalStep, status)
	fmt.Fprintf(w, "Snapshots: %d  Digest: %s\n", r.Snapshots, r.Digest)
	if verbose {
		fmt.Fprintf(w, "Program hash: %s\n", r.Run.ProgramHash)
		fmt.Fprintf(w, "Engine: %s  Trace format: %s\n", r.Run.EngineVersion, r.Run.TraceVersion)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Log:")
	if len(r.Log) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, e := range r.Log {
		fmt.Fprintf(w, "  %d. %s (step %d)\n", e.Position+1, e.Label, e.Step)
	}

	if len(r.Trace) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Snapshots:")
		for _, line := range r.Trace {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
