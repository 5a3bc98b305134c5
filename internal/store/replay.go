package store

import (
	"context"
	"fmt"

	"github.com/roach88/arbor/internal/ir"
)

// This file holds the recovery-and-replay read surface. Replay in arbor is
// structural, not a special mode: the replayer rebuilds the pinned tree
// from its stored canonical definition, re-executes it with the recorded
// initial blackboard and run token, and compares the regenerated event
// sequence against the stored one position by position. Because every
// write is idempotent (ON CONFLICT DO NOTHING keyed on content or on
// (run_token, seq)), re-running a recorded run against the same store
// cannot duplicate rows.

// ReplayRun loads everything needed to re-execute a run: the run record,
// the pinned tree spec it executed, and its stored event sequence in
// logical clock order.
func (s *Store) ReplayRun(ctx context.Context, token string) (ir.RunRow, *ir.TreeSpec, []ir.TickEvent, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return ir.RunRow{}, nil, nil, fmt.Errorf("replay run %s: %w", token, err)
	}

	spec, err := s.ReadTreeSpec(ctx, run.TreeHash)
	if err != nil {
		return ir.RunRow{}, nil, nil, fmt.Errorf("replay run %s: %w", token, err)
	}

	events, err := s.ReadRunEvents(ctx, token)
	if err != nil {
		return ir.RunRow{}, nil, nil, fmt.Errorf("replay run %s: %w", token, err)
	}

	return run, spec, events, nil
}

// FindUnfinishedRuns returns tokens of runs that never recorded a terminal
// status - interrupted mid-run by a crash or cancellation. Replay skips
// them: without a run_end there is nothing to verify against.
//
// Results ordered by started_seq ASC, token ASC for deterministic output.
func (s *Store) FindUnfinishedRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM runs
		WHERE final_status IS NULL
		ORDER BY started_seq ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find unfinished runs: %w", err)
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

// GetLastSeq returns the highest logical clock value recorded anywhere in
// the store. A resuming process seeds its clock past this point so new
// events never collide with stored ones.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64

	var eventSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM tick_events
	`).Scan(&eventSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from tick_events: %w", err)
	}
	maxSeq = eventSeq

	var runSeq int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(started_seq), 0) FROM runs
	`).Scan(&runSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from runs: %w", err)
	}
	if runSeq > maxSeq {
		maxSeq = runSeq
	}

	return maxSeq, nil
}
