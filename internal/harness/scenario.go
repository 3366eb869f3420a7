package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
)

// Scenario defines a conformance test scenario: a program, the drain policy
// to run it under, and what the finished run must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the program text, inline.
	Program string `yaml:"program,omitempty"`

	// ProgramFile is a path to the program text, relative to the scenario
	// file. Exactly one of Program and ProgramFile must be set.
	ProgramFile string `yaml:"program_file,omitempty"`

	// DrainPolicy is "after-script" (default) or "every-turn".
	DrainPolicy string `yaml:"drain_policy,omitempty"`

	// RunID is an optional fixed run id for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Expect describes the finished run. Nil skips the check.
	Expect *Expectation `yaml:"expect,omitempty"`

	// Assertions validate the log and the snapshot trace.
	// Supported types: log_equals, log_order, log_contains, log_count,
	// final_step, max_stack_depth.
	Assertions []Assertion `yaml:"assertions"`
}

// Expectation is the shorthand for the two facts most scenarios check.
type Expectation struct {
	// Log is the exact final execution log.
	Log []string `yaml:"log"`

	// Steps is the final step counter. Nil skips the check.
	Steps *int `yaml:"steps,omitempty"`
}

// Assertion validates the log or the snapshot trace of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "log_equals": the log is exactly Labels
	// - "log_order": Labels appear in the log in this order (gaps allowed)
	// - "log_contains": Label appears in the log
	// - "log_count": Label appears exactly Count times
	// - "final_step": the last snapshot has step Step
	// - "max_stack_depth": no snapshot holds more than Depth stack items
	Type string `yaml:"type"`

	Label  string   `yaml:"label,omitempty"`
	Labels []string `yaml:"labels,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Step   int      `yaml:"step,omitempty"`
	Depth  int      `yaml:"depth,omitempty"`
}

// Assertion type constants.
const (
	AssertLogEquals     = "log_equals"
	AssertLogOrder      = "log_order"
	AssertLogContains   = "log_contains"
	AssertLogCount      = "log_count"
	AssertFinalStep     = "final_step"
	AssertMaxStackDepth = "max_stack_depth"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.ProgramFile != "" {
		programPath := scenario.ProgramFile
		if !filepath.IsAbs(programPath) {
			programPath = filepath.Join(filepath.Dir(path), programPath)
		}
		src, err := os.ReadFile(programPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read program file: %w", err)
		}
		scenario.Program = string(src)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml and *.yml file in dir, sorted by file
// name. The first invalid file aborts the load.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Program == "" && s.ProgramFile == "":
		return fmt.Errorf("program or program_file is required")
	case s.Program != "" && s.ProgramFile != "":
		return fmt.Errorf("program and program_file are mutually exclusive")
	}

	if _, err := engine.ParseDrainPolicy(s.DrainPolicy); err != nil {
		return err
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or a non-empty assertions list is required")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion[%d]: %w", i, err)
		}
	}

	return nil
}

// validateAssertion checks the fields each assertion type needs.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertLogEquals:
		// An empty Labels list asserts an empty log.
	case AssertLogOrder:
		if len(a.Labels) < 2 {
			return fmt.Errorf("%s requires at least two labels", a.Type)
		}
	case AssertLogContains:
		if a.Label == "" {
			return fmt.Errorf("%s requires label", a.Type)
		}
	case AssertLogCount:
		if a.Label == "" {
			return fmt.Errorf("%s requires label", a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s count must be non-negative", a.Type)
		}
	case AssertFinalStep:
		if a.Step < 0 {
			return fmt.Errorf("%s step must be non-negative", a.Type)
		}
	case AssertMaxStackDepth:
		if a.Depth < 0 {
			return fmt.Errorf("%s depth must be non-negative", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
