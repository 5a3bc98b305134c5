// # Replay and Determinism
//
// This file implements trace verification: prove that a stored run is
// reproducible from its pinned inputs alone.
//
// ## Structural Replay
//
// Replay is STRUCTURAL, not a special engine mode. The same Build and Run
// paths handle both initial execution and verification; replay just feeds
// them recorded inputs:
//
//   - The tree definition comes from the pinned canonical JSON in the
//     trees table, not from whatever the source file says today.
//   - The blackboard is seeded from the run row's initial snapshot.
//   - The run token is fixed to the stored token.
//   - The clock starts at started_seq - 1, so the replayed run draws the
//     same seq numbers the original drew.
//
// ## Verification Flow
//
//	[Stored run] → [Rebuild tree from pinned definition]
//	                   ↓
//	        [Re-execute into a scratch :memory: store]
//	                   ↓
//	        [Compare event rows position by position]
//
// The re-execution runs the real Runner against a throwaway store, so any
// future change to how runs are traced is automatically covered by the
// comparison; there is no second emission path to drift.
//
// ## Why Identical Output is Possible
//
// Three properties make the original byte-reproducible:
//
//   - Deterministic core: tick order is fixed by the tree, and every leaf
//     builtin is a pure function of params, blackboard, and tick count.
//   - Logical time: events are ordered by clock seq, never wall clock.
//   - Canonical pinning: the definition is content-addressed, and the
//     blackboard snapshot round-trips through canonical JSON without
//     loss (integers stay int64).
//
// A tree whose custom leaves consult real time, randomness, or the outside
// world will not verify; that is the point of the check.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/store"
)

// VerifyResult reports one run's replay verification.
type VerifyResult struct {
	Token          string `json:"token"`
	Tree           string `json:"tree"`
	Match          bool   `json:"match"`
	StoredEvents   int    `json:"stored_events"`
	ReplayedEvents int    `json:"replayed_events"`

	// Divergence describes the first mismatch. Empty when Match.
	Divergence string `json:"divergence,omitempty"`
}

// VerifyRun re-executes a stored run and compares the regenerated trace to
// the stored one.
//
// registry must resolve the same leaves the original run used; nil means
// DefaultRegistry. Load and rebuild problems return an error; a divergent
// trace is not an error, it is a result with Match false.
func VerifyRun(ctx context.Context, s *store.Store, token string, registry *Registry) (*VerifyResult, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	run, spec, stored, err := s.ReplayRun(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", token, err)
	}
	blackboard, err := s.ReadRunBlackboard(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load blackboard for run %s: %w", token, err)
	}

	tree, err := Build(spec, registry)
	if err != nil {
		return nil, fmt.Errorf("rebuild tree for run %s: %w", token, err)
	}
	tree.SeedBlackboard(blackboard)

	// Re-execute into a scratch store with the recorded identity: same
	// token, same starting seq, same tick count.
	scratch, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open scratch store: %w", err)
	}
	defer scratch.Close()

	runner := NewRunner(scratch,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(NewClockAt(run.StartedSeq-1)),
		WithTokens(NewFixedGenerator(token)),
		WithMaxTicks(int(run.TickCount)),
		WithRestart(true),
	)
	if _, err := runner.Run(ctx, tree); err != nil {
		return nil, fmt.Errorf("re-execute run %s: %w", token, err)
	}

	replayed, err := scratch.ReadRunEvents(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("read replayed events: %w", err)
	}

	result := &VerifyResult{
		Token:          token,
		Tree:           run.TreeName,
		StoredEvents:   len(stored),
		ReplayedEvents: len(replayed),
	}
	result.Match, result.Divergence = compareEvents(stored, replayed)
	return result, nil
}

// compareEvents compares two traces position by position and describes the
// first divergence.
func compareEvents(stored, replayed []ir.TickEvent) (bool, string) {
	n := len(stored)
	if len(replayed) < n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		if stored[i] != replayed[i] {
			return false, fmt.Sprintf("event %d: stored %s, replayed %s",
				i, formatEvent(stored[i]), formatEvent(replayed[i]))
		}
	}
	if len(stored) != len(replayed) {
		return false, fmt.Sprintf("stored %d event(s), replayed %d", len(stored), len(replayed))
	}
	return true, ""
}

func formatEvent(ev ir.TickEvent) string {
	return fmt.Sprintf("{seq=%d tick=%d %s %s/%s %s}",
		ev.Seq, ev.Tick, ev.Event, ev.Node, ev.NodeKind, ev.Status)
}
