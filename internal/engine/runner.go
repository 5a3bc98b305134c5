package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/store"
)

// DefaultMaxTicks is the default tick budget per run.
// This prevents a tree that never settles from running unbounded.
const DefaultMaxTicks = 100

// Runner drives a built tree to completion.
//
// One Run call owns the tree for its duration: ticking, trace recording, and
// store writes all happen on the calling goroutine. Reuse a Runner across
// runs, but do not share one tree between concurrent Run calls.
type Runner struct {
	store      *store.Store
	logger     *slog.Logger
	clock      *Clock
	tokens     TokenGenerator
	maxTicks   int
	interval   time.Duration
	restart    bool
	beforeTick func(tick int)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMaxTicks sets the tick budget per run.
//
// Default: 100 ticks (DefaultMaxTicks)
// Use WithMaxTicks(1) for single-step execution.
func WithMaxTicks(maxTicks int) RunnerOption {
	return func(r *Runner) {
		r.maxTicks = maxTicks
	}
}

// WithInterval makes the runner wait d between ticks (a time.Ticker).
// Zero, the default, ticks back to back.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}

// WithClock sets the logical clock. Pass NewClockAt(store.GetLastSeq())
// when writing into a store with existing history so new seqs sort after
// everything already recorded.
func WithClock(clock *Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithTokens sets the run token generator. Defaults to UUIDv7Generator;
// tests pass a FixedGenerator for deterministic tokens.
func WithTokens(tokens TokenGenerator) RunnerOption {
	return func(r *Runner) {
		r.tokens = tokens
	}
}

// WithRestart makes the runner keep ticking after a terminal root status.
// The next tick opens a fresh episode; the run ends when the tick budget is
// spent or the context is cancelled, and spending the budget is not an
// error in this mode.
func WithRestart(restart bool) RunnerOption {
	return func(r *Runner) {
		r.restart = restart
	}
}

// WithBeforeTick registers a callback invoked right before each tick with
// the 1-based tick number. The conformance harness uses it to apply per-step
// blackboard writes.
func WithBeforeTick(fn func(tick int)) RunnerOption {
	return func(r *Runner) {
		r.beforeTick = fn
	}
}

// NewRunner creates a Runner writing traces to s. A nil store disables
// persistence; the run still executes and returns a full Result.
func NewRunner(s *store.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    s,
		logger:   slog.Default(),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		maxTicks: DefaultMaxTicks,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result summarizes one run.
type Result struct {
	// Token is the run token, the key for trace queries.
	Token string

	// TreeName and TreeHash identify the executed definition.
	TreeName string
	TreeHash string

	// Status is the root status when the run ended.
	Status bt.Status

	// Ticks is the number of ticks executed.
	Ticks int

	// Statuses is the root status after each tick, in tick order.
	Statuses []bt.Status
}

// Run drives tree until the root settles, the tick budget is spent, or ctx
// is cancelled.
//
// The Result is always non-nil and reflects whatever executed before the
// run ended. The error, when non-nil, is a *RunError: aborted for
// cancellation, not_converged for a spent budget with the root still
// running, trace_failed when the run itself finished but trace writes were
// lost. Store failures inside the loop are logged and counted, never fatal,
// so a broken trace store cannot stop a run mid-flight.
func (r *Runner) Run(ctx context.Context, tree *Tree) (*Result, error) {
	token := r.tokens.Generate()
	result := &Result{Token: token, TreeName: tree.Spec.Name, TreeHash: tree.Hash}

	rootName := tree.Spec.Root
	rootKind := tree.Root.Kind().String()

	var traceFailures int
	var firstTraceErr error
	noteFailure := func(what string, err error) {
		traceFailures++
		if firstTraceErr == nil {
			firstTraceErr = err
		}
		r.logger.Error("trace write failed",
			"run", token,
			"write", what,
			"error", err,
		)
	}

	var rec *recorder
	if r.store != nil {
		// Pin the definition and open the run row before the first tick.
		if _, err := r.store.WriteTree(ctx, tree.Spec); err != nil {
			noteFailure("tree", err)
		}
		blackboard, err := ir.MarshalCanonical(tree.Blackboard.Snapshot())
		if err != nil {
			noteFailure("blackboard", err)
			blackboard = []byte("{}")
		}
		row := ir.RunRow{
			Token:             token,
			TreeName:          tree.Spec.Name,
			TreeHash:          tree.Hash,
			InitialBlackboard: string(blackboard),
			StartedSeq:        r.clock.Next(),
			EngineVersion:     ir.EngineVersion,
		}
		if _, err := r.store.BeginRun(ctx, row); err != nil {
			noteFailure("run", err)
		}

		rec = newRecorder(r.clock, token)
		tree.instrument(rec)
		rec.beginTick(0)
		rec.record(ir.EventRunStart, rootName, rootKind, tree.Root.Status().String())
		r.flush(ctx, rec, noteFailure)
	}

	r.logger.Info("run starting",
		"run", token,
		"tree", tree.Spec.Name,
		"hash", tree.Hash,
		"max_ticks", r.maxTicks,
	)

	var tickC <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	aborted := false
	status := bt.StatusIdle

loop:
	for tick := 1; tick <= r.maxTicks; tick++ {
		select {
		case <-ctx.Done():
			aborted = true
			break loop
		default:
		}

		if rec != nil {
			rec.beginTick(int64(tick))
		}
		if r.beforeTick != nil {
			r.beforeTick(tick)
		}

		status = bt.Tick(tree.Root)
		result.Ticks = tick
		result.Statuses = append(result.Statuses, status)

		if rec != nil {
			rec.record(ir.EventTick, rootName, rootKind, status.String())
			r.flush(ctx, rec, noteFailure)
		}
		r.logger.Debug("tick finished",
			"run", token,
			"tick", tick,
			"status", status.String(),
		)

		if status.Terminal() && !r.restart {
			break
		}
		if tick == r.maxTicks {
			break
		}
		if tickC != nil {
			select {
			case <-ctx.Done():
				aborted = true
				break loop
			case <-tickC:
			}
		}
	}

	result.Status = status

	// Close out the trace even when the context is gone. Without run_end
	// and a final status the run looks crashed, not cancelled.
	if r.store != nil {
		endCtx := context.WithoutCancel(ctx)
		rec.record(ir.EventRunEnd, rootName, rootKind, status.String())
		r.flush(endCtx, rec, noteFailure)
		if err := r.store.FinishRun(endCtx, token, status.String(), int64(result.Ticks)); err != nil {
			noteFailure("finish", err)
		}
	}

	r.logger.Info("run finished",
		"run", token,
		"tree", tree.Spec.Name,
		"status", status.String(),
		"ticks", result.Ticks,
	)

	switch {
	case aborted:
		return result, NewAbortedError(tree.Spec.Name, token, ctx.Err())
	case !status.Terminal() && !r.restart:
		return result, NewNotConvergedError(tree.Spec.Name, token, result.Ticks)
	case traceFailures > 0:
		return result, NewTraceFailedError(tree.Spec.Name, token, traceFailures, firstTraceErr)
	}
	return result, nil
}

// flush writes buffered trace events, logging failures without stopping
// the run.
func (r *Runner) flush(ctx context.Context, rec *recorder, noteFailure func(string, error)) {
	for _, ev := range rec.drain() {
		if err := r.store.WriteTickEvent(ctx, ev); err != nil {
			noteFailure(ev.Event, err)
		}
	}
}
