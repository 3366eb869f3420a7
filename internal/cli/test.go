package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // directory of <name>.golden traces
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match" | "updated" | "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every scenario file in a directory through the engine.

Each scenario runs with waits skipped. Its log, step count and assertions
are checked, and every snapshot is checked against the engine invariants.
With --golden, the formatted trace is compared with <name>.golden in that
directory; --update rewrites those files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  loopviz test ./scenarios
  loopviz test ./scenarios --filter "canonical*"
  loopviz test ./scenarios --golden ./golden --update
  loopviz test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on their name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid filter %q", opts.Filter), err)
		}
	}

	scenarios, err := harness.LoadScenarioDir(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	var selected []*harness.Scenario
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		selected = append(selected, s)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(selected)),
		Total:     len(selected),
	}
	for _, s := range selected {
		sr := runScenario(s, opts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	err = newFormatter(cmd, opts.RootOptions).Result(result, func(w io.Writer) {
		printTestText(w, result)
	})
	if err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func runScenario(s *harness.Scenario, opts *TestOptions) ScenarioResult {
	out := ScenarioResult{Name: s.Name}

	res, err := harness.Run(s)
	if err != nil {
		out.Errors = []string{err.Error()}
		return out
	}
	out.Errors = append(out.Errors, res.Errors...)

	if opts.GoldenDir != "" {
		status, err := checkGolden(opts.GoldenDir, s.Name, harness.FormatTrace(res.Trace), opts.Update)
		out.Golden = status
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
	}

	out.Pass = len(out.Errors) == 0
	return out
}

// checkGolden compares trace with dir/name.golden, or rewrites it when
// update is set. A missing golden file is not a failure.
func checkGolden(dir, name string, trace []byte, update bool) (string, error) {
	path := filepath.Join(dir, name+".golden")
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, trace) {
		return "mismatch", fmt.Errorf("trace does not match %s", path)
	}
	return "match", nil
}

func printTestText(w io.Writer, result TestResult) {
	for _, s := range result.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, s.Name)
		if s.Golden != "" {
			line += fmt.Sprintf(" [golden: %s]", s.Golden)
		}
		fmt.Fprintln(w, line)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
	} else if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
