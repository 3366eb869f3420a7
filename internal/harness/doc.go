// Package harness provides conformance testing for the scheduler engine.
//
// The harness runs a program through a fresh engine with an instant sleeper
// and a fixed run id, collects the complete snapshot trace, checks the
// structural invariants of every snapshot, and evaluates the scenario's
// expectations and assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	drain_policy: after-script   # or every-turn; optional
//	run_id: golden-run           # optional
//	program: |
//	  console.log("Start");
//	  setTimeout(() => {}, 0);
//	  console.log("End");
//	expect:
//	  log: ["Start", "End", "setTimeout callback"]
//	  steps: 3
//	assertions:
//	  - type: log_order
//	    labels: ["End", "setTimeout callback"]
//	  - type: max_stack_depth
//	    depth: 1
//
// program_file may replace program; it is resolved relative to the scenario.
//
// # Assertion Types
//
//   - log_equals: the final log is exactly labels
//   - log_order: labels appear in the log in order, gaps allowed
//   - log_contains: label appears in the log
//   - log_count: label appears exactly count times
//   - final_step: the step counter ends at step
//   - max_stack_depth: no snapshot holds more than depth items on the stack
//
// # Golden Traces
//
// RunWithGolden renders the trace with FormatTrace and compares it against
// testdata/golden/<name>.golden using goldie. Regenerate with -update.
package harness
