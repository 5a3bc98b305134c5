// Package harness provides conformance testing for behavior tree execution.
//
// The harness compiles tree definitions, drives them tick by tick through
// the real runner against an in-memory trace store, and validates both
// per-step expectations and whole-trace assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	trees: ../trees
//	tree: patrol
//	blackboard: { battery_ok: true }
//	run_token: scenario-patrol-1
//	steps:
//	  - expect: RUNNING
//	  - set: { blocked: true }
//	    expect: RUNNING
//	  - expect: SUCCESS
//	assertions:
//	  - type: status_sequence
//	    statuses: [RUNNING, RUNNING, SUCCESS]
//	  - type: event_count
//	    node: sweep
//	    event: leaf
//	    count: 3
//
// The trees path is resolved relative to the scenario file. Each step is one
// root tick; its set map is written to the blackboard before the tick fires.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - status_sequence: the per-tick root statuses match, in full
//   - final_status: the root status after the last tick
//   - event_count: events matching a node and/or event filter number exactly N
//   - event_order: nodes first appear in the trace in the given order
//
// Beyond scenario assertions, structural laws are verified on every trace:
// run_start and run_end bracket the events, enter and exit rows pair up per
// episode, each step produces exactly one tick row, and the run_end status
// equals the last tick status. A scenario cannot opt out of the laws.
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and a fixed run token to
// ensure reproducible results and golden snapshot comparison.
//
// The harness uses:
//   - Fixed run tokens (from scenario.run_token or a constant default)
//   - A fresh logical clock starting at zero
//   - In-memory SQLite trace store (isolated per scenario)
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/patrol.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
