package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/arbor/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	RunToken     string         `json:"run_token"`
	FinalStatus  string         `json:"final_status"`
	Trace        []ir.TickEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. The per-row run token is omitted; the snapshot carries
// it once at the top level.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	rows := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		rows[i] = map[string]any{
			"seq":       ev.Seq,
			"tick":      ev.Tick,
			"event":     ev.Event,
			"node":      ev.Node,
			"node_kind": ev.NodeKind,
			"status":    ev.Status,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_token":     s.RunToken,
		"final_status":  s.FinalStatus,
		"trace":         rows,
	}
}

// SnapshotJSON renders the canonical trace snapshot for a scenario result.
// The same bytes back both goldie fixtures and the CLI's golden comparison.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunToken:     result.RunToken,
		FinalStatus:  result.FinalStatus,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace behavior;
// assertion outcomes are returned in the result for the caller to check.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// Useful when a scenario has already run and only the comparison is needed.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
