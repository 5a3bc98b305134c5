package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/arbor/internal/ir"
)

// WriteTree pins a tree definition, keyed by its canonical hash.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency - the same tree pinned
// twice is a no-op, and two sources compiling to the same canonical form
// share a row.
//
// Returns the tree hash so callers can reference the pinned row.
func (s *Store) WriteTree(ctx context.Context, spec *ir.TreeSpec) (string, error) {
	definition, err := marshalTreeDefinition(spec)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	hash, err := ir.TreeHash(spec)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (hash, name, definition)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, spec.Name, definition)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	return hash, nil
}

// BeginRun inserts a run record with final_status left NULL.
// Returns whether a new row was inserted; a duplicate token is silently
// ignored (inserted=false) so a crashed-and-restarted run can call BeginRun
// again without error.
//
// The run's InitialBlackboard must already be canonical JSON; the tree
// referenced by TreeHash must exist (foreign key constraint).
func (s *Store) BeginRun(ctx context.Context, run ir.RunRow) (inserted bool, err error) {
	blackboard := run.InitialBlackboard
	if blackboard == "" {
		blackboard = "{}"
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(token, tree_name, tree_hash, initial_blackboard, started_seq, final_status, tick_count, engine_version)
		VALUES (?, ?, ?, ?, ?, NULL, 0, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		run.Token,
		run.TreeName,
		run.TreeHash,
		blackboard,
		run.StartedSeq,
		run.EngineVersion,
	)
	if err != nil {
		return false, fmt.Errorf("begin run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin run: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// WriteTickEvent appends a tick event to a run's trace.
// Uses ON CONFLICT DO NOTHING for idempotency - replaying the same
// (run_token, seq) pair is silently ignored.
//
// Note: The run referenced by RunToken must exist (foreign key constraint).
func (s *Store) WriteTickEvent(ctx context.Context, ev ir.TickEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_events
		(run_token, seq, tick, event, node, node_kind, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		ev.RunToken,
		ev.Seq,
		ev.Tick,
		ev.Event,
		ev.Node,
		ev.NodeKind,
		ev.Status,
	)
	if err != nil {
		return fmt.Errorf("write tick event: %w", err)
	}

	return nil
}

// FinishRun records a run's terminal status and tick count.
// Only the first finish wins: the update is guarded on final_status IS
// NULL, so finishing an already-finished run is a no-op. Finishing a run
// that was never begun returns sql.ErrNoRows (wrapped).
func (s *Store) FinishRun(ctx context.Context, token, finalStatus string, tickCount int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET final_status = ?, tick_count = ?
		WHERE token = ? AND final_status IS NULL
	`, finalStatus, tickCount, token)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Zero rows means either "already finished" (fine) or "no such run".
	var exists int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM runs WHERE token = ?
	`, token).Scan(&exists)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("finish run %s: %w", token, sql.ErrNoRows)
	}

	return nil
}
