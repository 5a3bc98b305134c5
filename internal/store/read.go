package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/queryir"
	"github.com/roach88/arbor/internal/querysql"
)

// ReadTree retrieves a pinned tree definition by hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadTree(ctx context.Context, hash string) (ir.TreeRow, error) {
	var row ir.TreeRow
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, name, definition
		FROM trees
		WHERE hash = ?
	`, hash).Scan(&row.Hash, &row.Name, &row.Definition)
	if err != nil {
		return ir.TreeRow{}, err
	}
	return row, nil
}

// ReadTreeSpec retrieves a pinned tree and parses its canonical definition
// back into a spec. Used by replay to rebuild the exact tree a run
// executed, independent of the current CUE sources.
//
// The rebuilt spec lists nodes in sorted-name order (the canonical form
// keys nodes by name, so declaration order is not stored).
func (s *Store) ReadTreeSpec(ctx context.Context, hash string) (*ir.TreeSpec, error) {
	row, err := s.ReadTree(ctx, hash)
	if err != nil {
		return nil, err
	}

	spec, err := unmarshalTreeDefinition(row.Definition)
	if err != nil {
		return nil, fmt.Errorf("read tree spec %s: %w", hash, err)
	}
	return spec, nil
}

// ReadRun retrieves a run record by token.
// Returns sql.ErrNoRows if not found. FinalStatus is empty while the run
// is unfinished.
func (s *Store) ReadRun(ctx context.Context, token string) (ir.RunRow, error) {
	var run ir.RunRow
	var finalStatus sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT token, tree_name, tree_hash, initial_blackboard, started_seq, final_status, tick_count, engine_version
		FROM runs
		WHERE token = ?
	`, token).Scan(
		&run.Token, &run.TreeName, &run.TreeHash, &run.InitialBlackboard,
		&run.StartedSeq, &finalStatus, &run.TickCount, &run.EngineVersion,
	)
	if err != nil {
		return ir.RunRow{}, err
	}

	if finalStatus.Valid {
		run.FinalStatus = finalStatus.String
	}
	return run, nil
}

// ReadRunBlackboard retrieves a run's initial blackboard as a map.
// Integers come back as int64. Used by replay to seed the rebuilt tree
// with the exact values the original run started from.
func (s *Store) ReadRunBlackboard(ctx context.Context, token string) (map[string]any, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return nil, err
	}

	bb, err := unmarshalBlackboard(run.InitialBlackboard)
	if err != nil {
		return nil, fmt.Errorf("read run blackboard %s: %w", token, err)
	}
	return bb, nil
}

// ReadRunEvents returns a run's full trace in logical clock order.
// Results are ordered by seq ASC so replay comparison is positional.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadRunEvents(ctx context.Context, token string) ([]ir.TickEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, seq, tick, event, node, node_kind, status
		FROM tick_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query tick events: %w", err)
	}
	defer rows.Close()

	var events []ir.TickEvent
	for rows.Next() {
		var ev ir.TickEvent
		if err := rows.Scan(&ev.RunToken, &ev.Seq, &ev.Tick, &ev.Event, &ev.Node, &ev.NodeKind, &ev.Status); err != nil {
			return nil, fmt.Errorf("scan tick event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick events: %w", err)
	}

	// Return empty slice instead of nil
	if events == nil {
		events = []ir.TickEvent{}
	}

	return events, nil
}

// FilterRunEvents returns a run's events matching a filter, in logical
// clock order. A nil filter reads everything (same as ReadRunEvents).
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) FilterRunEvents(ctx context.Context, token string, filter queryir.Filter) ([]ir.TickEvent, error) {
	where, params, err := querysql.CompileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("filter run events: %w", err)
	}

	query := `
		SELECT run_token, seq, tick, event, node, node_kind, status
		FROM tick_events
		WHERE run_token = ? AND ` + where + `
		ORDER BY seq ASC
	`
	args := append([]any{token}, params...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter run events: %w", err)
	}
	defer rows.Close()

	var events []ir.TickEvent
	for rows.Next() {
		var ev ir.TickEvent
		if err := rows.Scan(&ev.RunToken, &ev.Seq, &ev.Tick, &ev.Event, &ev.Node, &ev.NodeKind, &ev.Status); err != nil {
			return nil, fmt.Errorf("scan tick event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick events: %w", err)
	}

	if events == nil {
		events = []ir.TickEvent{}
	}

	return events, nil
}

// CountRunEvents counts a run's events matching a filter.
// A nil filter counts everything. The filter is validated and compiled to
// parameterized SQL by querysql; unknown columns are rejected before any
// SQL runs.
func (s *Store) CountRunEvents(ctx context.Context, token string, filter queryir.Filter) (int64, error) {
	where, params, err := querysql.CompileFilter(filter)
	if err != nil {
		return 0, fmt.Errorf("count run events: %w", err)
	}

	query := `SELECT COUNT(*) FROM tick_events WHERE run_token = ? AND ` + where
	args := append([]any{token}, params...)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count run events: %w", err)
	}

	return count, nil
}

// ListRunTokens returns all run tokens in start order.
// Ties on started_seq break on token bytes for deterministic output.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRunTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM runs
		ORDER BY started_seq ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list run tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tokens: %w", err)
	}

	if tokens == nil {
		tokens = []string{}
	}

	return tokens, nil
}
