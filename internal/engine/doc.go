// Package engine builds executable behavior trees from compiled definitions
// and drives them tick by tick.
//
// The engine sits between the compiler and the core: it takes an ir.TreeSpec,
// resolves leaf names against a Registry, allocates the node arena, and hands
// the wired root to a Runner that calls bt.Tick in a loop until the root
// settles (or a budget runs out).
//
// ARCHITECTURE:
//
// Single-Writer Tick Loop:
// One goroutine owns the tree. Runner.Run ticks, records, and persists from
// that goroutine only. This ensures:
// - Predictable child evaluation order
// - Reproducible trace on replay
// - Simple reasoning about blackboard causality
//
// Tick Processing Flow:
// 1. Runner.Run stamps run_start and begins the run row
// 2. bt.Tick(root) walks the tree depth first
// 3. Instrumented hooks and leaf callbacks emit enter/leaf/exit events
// 4. The runner appends a tick event with the root status
// 5. Terminal root status (or exhausted budget) stamps run_end and finishes
//    the run row
//
// Leaf callbacks themselves may do anything, but the loop around them is
// strictly single-threaded. The engine is designed for determinism, not
// throughput.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every trace event is stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Build-Time Failure:
// Unknown leaves, bad params, and malformed graphs are rejected by Build,
// before the first tick. Tick time only sees structural faults the core
// already models (StatusError).
package engine
