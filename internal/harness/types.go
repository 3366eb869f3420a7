package harness

import "github.com/asitkr/event-loop-visualizer/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expectation and every assertion hold.
	Pass bool `json:"pass"`

	RunID string   `json:"run_id"`
	Log   []string `json:"log"`
	Steps int      `json:"steps"`

	// Trace contains every snapshot the run published, in order.
	// Used for trace assertions and golden comparison.
	Trace []ir.Snapshot `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Log:    []string{},
		Trace:  []ir.Snapshot{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addSnapshot appends to the trace and keeps the summary fields current.
func (r *Result) addSnapshot(s ir.Snapshot) {
	r.Trace = append(r.Trace, s)
	r.RunID = s.RunID
	r.Log = s.Log
	r.Steps = s.Step
}
