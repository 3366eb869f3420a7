package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Log      []string // Full log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull log:\n")
	for i, label := range e.Log {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, label)
	}

	return buf.String()
}

// assertLogEquals checks that the log is exactly the given labels.
func assertLogEquals(result *Result, assertion Assertion) error {
	want := assertion.Labels
	if want == nil {
		want = []string{}
	}
	if slices.Equal(result.Log, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogEquals,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", result.Log),
		Log:      result.Log,
	}
}

// assertLogOrder checks that labels appear in the specified order.
// Labels don't need to be consecutive (intervening entries are allowed), and
// a repeated label consumes a later occurrence.
func assertLogOrder(result *Result, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Labels {
		idx := slices.Index(result.Log[pos:], want)
		if idx < 0 {
			actual := "not found in log"
			if i > 0 {
				actual = fmt.Sprintf("not found after %q", assertion.Labels[i-1])
			}
			return &AssertionError{
				Type:     AssertLogOrder,
				Expected: fmt.Sprintf("%q in order", assertion.Labels),
				Actual:   fmt.Sprintf("%q %s", want, actual),
				Log:      result.Log,
			}
		}
		pos += idx + 1
	}
	return nil
}

// assertLogContains checks that the label was logged at least once.
func assertLogContains(result *Result, assertion Assertion) error {
	if slices.Contains(result.Log, assertion.Label) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("%q in log", assertion.Label),
		Actual:   "not found in log",
		Log:      result.Log,
	}
}

// assertLogCount checks that the label was logged exactly Count times.
func assertLogCount(result *Result, assertion Assertion) error {
	count := 0
	for _, label := range result.Log {
		if label == assertion.Label {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogCount,
		Expected: fmt.Sprintf("%q logged %d time(s)", assertion.Label, assertion.Count),
		Actual:   fmt.Sprintf("logged %d time(s)", count),
		Log:      result.Log,
	}
}

// assertFinalStep checks the step counter of the last snapshot.
func assertFinalStep(result *Result, assertion Assertion) error {
	if result.Steps == assertion.Step {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalStep,
		Expected: fmt.Sprintf("step %d", assertion.Step),
		Actual:   fmt.Sprintf("step %d", result.Steps),
		Log:      result.Log,
	}
}

// assertMaxStackDepth checks the call stack depth across the whole trace.
func assertMaxStackDepth(result *Result, assertion Assertion) error {
	for _, s := range result.Trace {
		if len(s.CallStack) > assertion.Depth {
			return &AssertionError{
				Type:     AssertMaxStackDepth,
				Expected: fmt.Sprintf("at most %d item(s) on the call stack", assertion.Depth),
				Actual:   fmt.Sprintf("%d item(s) at seq %d", len(s.CallStack), s.Seq),
				Log:      result.Log,
			}
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions against a result.
// Returns one message per failed assertion; nil means every assertion held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLogEquals:
			err = assertLogEquals(result, assertion)
		case AssertLogOrder:
			err = assertLogOrder(result, assertion)
		case AssertLogContains:
			err = assertLogContains(result, assertion)
		case AssertLogCount:
			err = assertLogCount(result, assertion)
		case AssertFinalStep:
			err = assertFinalStep(result, assertion)
		case AssertMaxStackDepth:
			err = assertMaxStackDepth(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
