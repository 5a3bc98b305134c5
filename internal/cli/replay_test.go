package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{}) // Missing --db flag

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayDeterministicRun(t *testing.T) {
	dbPath := seedTraceRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Replay Summary: 1 run(s)")
	assert.Contains(t, output, "✓ Run: trace-test-run")
	assert.Contains(t, output, "patrol: 9 event(s)")
	assert.Contains(t, output, "✓ All runs verified deterministic")
}

func TestReplaySpecificRun(t *testing.T) {
	dbPath := seedTraceRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--run", "trace-test-run"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Run: trace-test-run")
	assert.Contains(t, buf.String(), "✓ All runs verified deterministic")
}

func TestReplayVerbose(t *testing.T) {
	dbPath := seedTraceRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Tree: patrol")
	assert.Contains(t, output, "Stored Events:   9")
	assert.Contains(t, output, "Replayed Events: 9")
}

func TestReplayJSON(t *testing.T) {
	dbPath := seedTraceRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	dataBytes, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result ReplayResult
	require.NoError(t, json.Unmarshal(dataBytes, &result))

	assert.Equal(t, 1, result.TotalRuns)
	assert.Equal(t, 0, result.Skipped)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "trace-test-run", result.Runs[0].Token)
	assert.True(t, result.Runs[0].Match)
	assert.Equal(t, 9, result.Runs[0].StoredEvents)
	assert.Equal(t, 9, result.Runs[0].ReplayedEvents)
	assert.Empty(t, result.Runs[0].Divergence)
}

func TestReplayEmptyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "arbor.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs found in trace store.")
}

func TestReplayEmptyStoreJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "arbor.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReplayRunNotFound(t *testing.T) {
	dbPath := seedTraceRun(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "ghost"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: ghost")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// addUnfinishedRun opens the store and begins a run that never finishes,
// reusing the tree already pinned by the seeded run.
func addUnfinishedRun(t *testing.T, dbPath, token string) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, "trace-test-run")
	require.NoError(t, err)

	_, err = st.BeginRun(ctx, ir.RunRow{
		Token:             token,
		TreeName:          run.TreeName,
		TreeHash:          run.TreeHash,
		InitialBlackboard: "{}",
		StartedSeq:        1000,
		EngineVersion:     ir.EngineVersion,
	})
	require.NoError(t, err)
}

func TestReplaySkipsUnfinishedRuns(t *testing.T) {
	dbPath := seedTraceRun(t)
	addUnfinishedRun(t, dbPath, "half-run")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Replay Summary: 2 run(s)")
	assert.Contains(t, output, "Skipped 1 unfinished run(s)")
	assert.Contains(t, output, "✓ All runs verified deterministic")
}

func TestReplayUnfinishedRunExplicit(t *testing.T) {
	dbPath := seedTraceRun(t)
	addUnfinishedRun(t, dbPath, "half-run")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "--run", "half-run"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run half-run is unfinished, cannot replay")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayDetectsTamperedTrace(t *testing.T) {
	dbPath := seedTraceRun(t)

	// Flip the recorded final status; the replayed trace will disagree
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE tick_events SET status = 'FAILURE' WHERE run_token = ? AND event = 'run_end'`,
		"trace-test-run")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "determinism verification failed")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Run: trace-test-run")
	assert.Contains(t, output, "Divergence: event 8")
	assert.Contains(t, output, "✗ Determinism verification failed")
}

func TestReplayDetectsTamperedTraceJSON(t *testing.T) {
	dbPath := seedTraceRun(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE tick_events SET status = 'FAILURE' WHERE run_token = ? AND event = 'run_end'`,
		"trace-test-run")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)

	dataBytes, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result ReplayResult
	require.NoError(t, json.Unmarshal(dataBytes, &result))
	assert.False(t, result.AllDeterministic)
	require.Len(t, result.Runs, 1)
	assert.False(t, result.Runs[0].Match)
	assert.NotEmpty(t, result.Runs[0].Divergence)
}
