package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/extract"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// ExtractOperation is one recognized operation in command output.
type ExtractOperation struct {
	Line     int    `json:"line"`
	Category string `json:"category"`
	Label    string `json:"label"`
	DelayMS  int64  `json:"delay_ms"`
}

// ExtractResult is the output of the extract command.
type ExtractResult struct {
	Operations []ExtractOperation `json:"operations"`
	Summary    extract.Counts     `json:"summary"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [program-file]",
		Short: "List the operations recognized in a program",
		Long: `List the operations the extractor recognizes, in program order, without
running them.

Example:
  loopviz extract ./examples/order.js
  loopviz extract --format json < order.js`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runExtract(opts *RootOptions, args []string, cmd *cobra.Command) error {
	program, err := loadProgramForCommand(cmd, args)
	if err != nil {
		return err
	}

	ops := extract.Extract(program)
	result := ExtractResult{
		Operations: make([]ExtractOperation, len(ops)),
		Summary:    extract.Summary(ops),
	}
	for i, op := range ops {
		result.Operations[i] = ExtractOperation{
			Line:     op.Line,
			Category: op.Category.String(),
			Label:    op.Label,
			DelayMS:  op.Delay.Milliseconds(),
		}
	}

	return newFormatter(cmd, opts).Result(result, func(w io.Writer) {
		printExtractText(w, result)
	})
}

func printExtractText(w io.Writer, r ExtractResult) {
	if len(r.Operations) == 0 {
		fmt.Fprintln(w, "No operations recognized.")
		return
	}
	for i, op := range r.Operations {
		line := fmt.Sprintf("%3d. line %-4d %-12s %s", i+1, op.Line, op.Category, op.Label)
		if op.Category == ir.CategoryDeferred.String() {
			line += fmt.Sprintf(" (%dms)", op.DelayMS)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d operations: %d immediate, %d deferred, %d continuation\n",
		r.Summary.Total(), r.Summary.Immediate, r.Summary.Deferred, r.Summary.Continuation)
}
