package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
	"github.com/asitkr/event-loop-visualizer/internal/testutil"
)

// DefaultTimeout bounds a single scenario run. With the instant sleeper a
// run finishes in microseconds; hitting the limit means the loop is stuck.
const DefaultTimeout = 10 * time.Second

// traceCollector records the snapshot stream and checks the invariants of
// every snapshot and of every consecutive pair.
type traceCollector struct {
	engine.NoopObserver
	result    *Result
	prev      ir.Snapshot
	hasPrev   bool
	violation error
}

func (c *traceCollector) OnSnapshot(s ir.Snapshot) {
	c.result.addSnapshot(s)
	if c.violation != nil {
		return
	}
	if err := s.CheckInvariants(); err != nil {
		c.violation = fmt.Errorf("snapshot seq %d: %w", s.Seq, err)
		return
	}
	if c.hasPrev {
		if err := ir.CheckTransition(c.prev, s); err != nil {
			c.violation = fmt.Errorf("snapshot seq %d: %w", s.Seq, err)
			return
		}
	}
	c.prev, c.hasPrev = s, true
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets a fresh engine with an instant sleeper and a fixed run
// id, so the same scenario always produces the same snapshot trace.
//
// Execution flow:
// 1. Build the engine for the scenario's drain policy
// 2. Run the program and wait for the phase loop to exit
// 3. Check invariants, the expectation, and every assertion
// 4. Return result with pass/fail, trace, and errors
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return RunContext(ctx, scenario)
}

// RunContext is Run with a caller-supplied deadline.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	policy, err := engine.ParseDrainPolicy(scenario.DrainPolicy)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	result := NewResult()
	collector := &traceCollector{result: result}

	eng := engine.New(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithSleeper(testutil.InstantSleeper{}),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(scenario.RunID)),
		engine.WithDrainPolicy(policy),
		engine.WithObserver(collector),
	)

	done := eng.Run(scenario.Program)
	select {
	case <-done:
	case <-ctx.Done():
		eng.Reset()
		<-done
		return nil, fmt.Errorf("scenario %q did not finish: %w", scenario.Name, ctx.Err())
	}

	if collector.violation != nil {
		result.AddError(collector.violation.Error())
	}
	if last := result.Trace[len(result.Trace)-1]; last.Phase != ir.PhaseFinish {
		result.AddError(fmt.Sprintf("run ended in phase %q, want %q", last.Phase, ir.PhaseFinish))
	}

	if scenario.Expect != nil {
		for _, msg := range checkExpectation(result, *scenario.Expect) {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// checkExpectation compares the finished run against the expect block.
func checkExpectation(result *Result, want Expectation) []string {
	var errs []string
	if want.Log != nil && !slices.Equal(result.Log, want.Log) {
		errs = append(errs, (&AssertionError{
			Type:     "expect.log",
			Expected: fmt.Sprintf("%q", want.Log),
			Actual:   fmt.Sprintf("%q", result.Log),
			Log:      result.Log,
		}).Error())
	}
	if want.Steps != nil && result.Steps != *want.Steps {
		errs = append(errs, (&AssertionError{
			Type:     "expect.steps",
			Expected: fmt.Sprintf("%d", *want.Steps),
			Actual:   fmt.Sprintf("%d", result.Steps),
			Log:      result.Log,
		}).Error())
	}
	return errs
}
