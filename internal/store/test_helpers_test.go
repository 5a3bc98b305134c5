package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/arbor/internal/ir"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleTreeSpec returns a small valid spec for write/read round trips.
func sampleTreeSpec() *ir.TreeSpec {
	return &ir.TreeSpec{
		Name: "patrol",
		Root: "mission",
		Nodes: []ir.NodeSpec{
			{Name: "mission", Kind: ir.KindSequence, Children: []string{"battery_ok", "sweep"}},
			{Name: "battery_ok", Kind: ir.KindCondition, Leaf: "flag", Params: map[string]any{"key": "battery_ok"}},
			{Name: "sweep", Kind: ir.KindAction, Leaf: "counter", Params: map[string]any{"ticks": int64(3)}},
		},
	}
}

// pinTestTree writes the sample tree and returns its hash.
func pinTestTree(t *testing.T, s *Store) string {
	t.Helper()
	hash, err := s.WriteTree(context.Background(), sampleTreeSpec())
	if err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}
	return hash
}

// createTestRun returns a run row referencing the given tree hash.
func createTestRun(token, treeHash string, startedSeq int64) ir.RunRow {
	return ir.RunRow{
		Token:             token,
		TreeName:          "patrol",
		TreeHash:          treeHash,
		InitialBlackboard: `{"battery_ok":true}`,
		StartedSeq:        startedSeq,
		EngineVersion:     ir.EngineVersion,
	}
}

// beginTestRun pins the sample tree, begins a run, and returns the tree hash.
func beginTestRun(t *testing.T, s *Store, token string) string {
	t.Helper()
	hash := pinTestTree(t, s)
	if _, err := s.BeginRun(context.Background(), createTestRun(token, hash, 1)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return hash
}

// createTestEvent returns a tick event row with the given coordinates.
func createTestEvent(runToken string, seq, tick int64, event, node, kind, status string) ir.TickEvent {
	return ir.TickEvent{
		RunToken: runToken,
		Seq:      seq,
		Tick:     tick,
		Event:    event,
		Node:     node,
		NodeKind: kind,
		Status:   status,
	}
}
