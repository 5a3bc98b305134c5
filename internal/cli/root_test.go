package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTreeFixture writes a small tree directory and returns its path.
// The patrol tree needs battery_ok=true on the blackboard and two ticks
// of sweeping to reach SUCCESS; without the flag it fails on tick one.
func writeTreeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := `package trees

tree: patrol: {
	root: "mission"

	node: mission: {
		kind: "sequence"
		children: ["battery_ok", "sweep"]
	}
	node: battery_ok: {
		kind: "condition"
		leaf: "flag"
		params: {key: "battery_ok"}
	}
	node: sweep: {
		kind: "action"
		leaf: "counter"
		params: {ticks: 2}
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patrol.cue"), []byte(src), 0644))
	return dir
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "arbor", cmd.Use)
	assert.Contains(t, cmd.Long, "behavior tree")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "tick", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	dbFlag := runCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, ":memory:", dbFlag.DefValue)

	treeFlag := runCmd.Flags().Lookup("tree")
	require.NotNil(t, treeFlag)
	assert.Equal(t, "", treeFlag.DefValue)

	ticksFlag := runCmd.Flags().Lookup("ticks")
	require.NotNil(t, ticksFlag)
	assert.Equal(t, "100", ticksFlag.DefValue)

	require.NotNil(t, runCmd.Flags().Lookup("interval"))
	require.NotNil(t, runCmd.Flags().Lookup("restart"))
	require.NotNil(t, runCmd.Flags().Lookup("bb"))
}

func TestTickCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tickCmd, _, err := cmd.Find([]string{"tick"})
	require.NoError(t, err)

	treeFlag := tickCmd.Flags().Lookup("tree")
	require.NotNil(t, treeFlag)

	bbFlag := tickCmd.Flags().Lookup("bb")
	require.NotNil(t, bbFlag)
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	dbFlag := replayCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)

	runFlag := replayCmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	require.NotNil(t, traceCmd.Flags().Lookup("db"))
	require.NotNil(t, traceCmd.Flags().Lookup("run"))
	require.NotNil(t, traceCmd.Flags().Lookup("node"))
	require.NotNil(t, traceCmd.Flags().Lookup("event"))
	require.NotNil(t, traceCmd.Flags().Lookup("status"))
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	// Verify help text contains key elements
	assert.Contains(t, cmd.Short, "behavior tree")
	assert.Contains(t, cmd.Long, "deterministic")
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
