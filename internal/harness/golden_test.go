package harness

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/ir"
)

// TestRunWithGolden_ExampleScenarios runs every scenario in
// testdata/scenarios against its golden trace.
//
// To regenerate golden files after an intentional trace change:
//
//	go test ./internal/harness -run TestRunWithGolden_ExampleScenarios -update
func TestRunWithGolden_ExampleScenarios(t *testing.T) {
	scenarios := []string{
		"sequence_resumes",
		"selector_recovers",
		"episode_restarts",
		"patrol_guard_not_rechecked",
		"patrol_blocked_fails",
	}

	for _, name := range scenarios {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	// AssertGolden works on an already-executed result, so a scenario can be
	// inspected between Run and the golden comparison.
	scenario, err := LoadScenario("testdata/scenarios/selector_recovers.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass)

	err = AssertGolden(t, scenario.Name, result)
	require.NoError(t, err)
}

func TestSnapshotJSON_Format(t *testing.T) {
	result := NewResult()
	result.RunToken = "tok-1"
	result.FinalStatus = "SUCCESS"
	result.Trace = []ir.TickEvent{
		{Seq: 3, Tick: 1, Event: ir.EventTick, Node: "solo", NodeKind: "action", Status: "SUCCESS"},
	}

	data, err := SnapshotJSON("fmt_check", result)
	require.NoError(t, err)

	want := `{"final_status":"SUCCESS","run_token":"tok-1","scenario_name":"fmt_check",` +
		`"trace":[{"event":"tick","node":"solo","node_kind":"action","seq":3,"status":"SUCCESS","tick":1}]}`
	assert.Equal(t, want, string(data))
}

func TestSnapshotJSON_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/episode_restarts.yaml")
	require.NoError(t, err)

	result1, err := Run(scenario)
	require.NoError(t, err)
	result2, err := Run(scenario)
	require.NoError(t, err)

	json1, err := SnapshotJSON(scenario.Name, result1)
	require.NoError(t, err)
	json2, err := SnapshotJSON(scenario.Name, result2)
	require.NoError(t, err)

	require.Equal(t, json1, json2, "canonical JSON must be deterministic")
}

func TestSnapshotJSON_TokenOnceAtTopLevel(t *testing.T) {
	// Each stored row carries the run token, but the snapshot hoists it to the
	// top level so golden files don't repeat it per row.
	scenario, err := LoadScenario("testdata/scenarios/selector_recovers.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(data, []byte(`"run_token"`)))
	assert.Equal(t, 1, bytes.Count(data, []byte(result.RunToken)))
}
