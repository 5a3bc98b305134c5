package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/ir"
)

// Scenario defines a conformance test scenario.
// Scenarios validate execution semantics by ticking a tree a fixed number of
// times and asserting on the per-tick statuses and the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Trees is the directory of CUE tree definitions to compile.
	// Relative paths are resolved against the scenario file location.
	Trees string `yaml:"trees"`

	// Tree names the tree to execute, as defined in the trees directory.
	Tree string `yaml:"tree"`

	// Blackboard seeds the shared blackboard before the first tick.
	// Values follow canonical JSON rules: no floats, no nulls.
	Blackboard map[string]any `yaml:"blackboard,omitempty"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, a constant default is used so golden comparison stays stable.
	// Scenarios that share a golden directory should pick distinct tokens.
	RunToken string `yaml:"run_token,omitempty"`

	// Steps drive the run, one root tick each.
	// A step's set map is written to the blackboard before its tick fires.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and status sequence.
	// Supported types: status_sequence, final_status, event_count, event_order.
	// Structural trace laws are checked regardless, so this may be empty.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step represents a single tick of the scenario's tree.
type Step struct {
	// Set contains blackboard writes applied before this tick.
	Set map[string]any `yaml:"set,omitempty"`

	// Expect is the root status this tick must produce
	// (IDLE, RUNNING, SUCCESS, FAILURE, or ERROR).
	Expect string `yaml:"expect"`
}

// Assertion validates the trace or the status sequence.
type Assertion struct {
	// Type specifies the assertion type:
	// - "status_sequence": the full per-tick root status sequence
	// - "final_status": the root status after the last tick
	// - "event_count": events matching the node/event filter number exactly Count
	// - "event_order": nodes first appear in the trace in the given order
	Type string `yaml:"type"`

	// Statuses is the expected root status per tick (used by status_sequence).
	Statuses []string `yaml:"statuses,omitempty"`

	// Status is the expected final root status (used by final_status).
	Status string `yaml:"status,omitempty"`

	// Node filters trace rows by node name (used by event_count).
	Node string `yaml:"node,omitempty"`

	// Event filters trace rows by event name (used by event_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of matching rows (used by event_count).
	Count int `yaml:"count,omitempty"`

	// Nodes is the expected first-appearance order (used by event_order).
	Nodes []string `yaml:"nodes,omitempty"`
}

// Assertion type constants.
const (
	AssertStatusSequence = "status_sequence"
	AssertFinalStatus    = "final_status"
	AssertEventCount     = "event_count"
	AssertEventOrder     = "event_order"
)

// LoadScenario reads and parses a scenario YAML file. The trees directory is
// resolved relative to the scenario file when it is not absolute.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the trees directory relative to the scenario file BEFORE validation.
	if scenario.Trees != "" && !filepath.IsAbs(scenario.Trees) {
		scenario.Trees = filepath.Join(filepath.Dir(path), scenario.Trees)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Trees == "" {
		return fmt.Errorf("trees directory is required")
	}
	if info, err := os.Stat(s.Trees); os.IsNotExist(err) {
		return fmt.Errorf("trees directory not found: %s", s.Trees)
	} else if err == nil && !info.IsDir() {
		return fmt.Errorf("trees path is not a directory: %s", s.Trees)
	}

	if s.Tree == "" {
		return fmt.Errorf("tree is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Expect == "" {
			return fmt.Errorf("steps[%d]: expect is required", i)
		}
		if _, err := bt.ParseStatus(step.Expect); err != nil {
			return fmt.Errorf("steps[%d]: %v", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatusSequence:
		if len(a.Statuses) == 0 {
			return fmt.Errorf("assertions[%d]: statuses list is required for status_sequence", index)
		}
		for j, status := range a.Statuses {
			if _, err := bt.ParseStatus(status); err != nil {
				return fmt.Errorf("assertions[%d].statuses[%d]: %v", index, j, err)
			}
		}
	case AssertFinalStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for final_status", index)
		}
		if _, err := bt.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %v", index, err)
		}
	case AssertEventCount:
		if a.Node == "" && a.Event == "" {
			return fmt.Errorf("assertions[%d]: node or event is required for event_count", index)
		}
		if a.Event != "" && !ir.ValidEvents[a.Event] {
			return fmt.Errorf("assertions[%d]: unknown event %q", index, a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Nodes) == 0 {
			return fmt.Errorf("assertions[%d]: nodes list is required for event_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
