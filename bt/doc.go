// Package bt implements a tick-driven behavior tree core for control loops.
//
// A behavior tree is a hierarchy of composite, decorator, and leaf nodes
// evaluated once per control cycle ("tick"). Composites fold their children's
// results (Sequence = AND, Selector = OR), the Inverter decorator swaps
// Success and Failure, and leaves (Action, Condition) call back into user
// code. A node that cannot finish within one tick returns StatusRunning and
// is resumed on the next tick without re-evaluating its finished siblings.
//
// ARCHITECTURE:
//
// Caller-Owned Storage:
// Nodes live wherever the caller puts them (locals, arrays, arena slices).
// Init writes into caller memory; the core allocates nothing and owns
// nothing. There is no teardown.
//
// Tick Pass:
// Tick(root) performs one synchronous depth-first pass. Nothing in the core
// sleeps, spawns goroutines, or blocks; pausing is expressed only by a node
// returning StatusRunning. Cadence belongs to the external driver.
//
// Episodes:
// A node's life is a series of episodes. An episode starts on the first tick
// where the prior status is not StatusRunning (cursor resets, OnEnter fires),
// spans any number of Running ticks, and ends when a terminal status is
// computed (OnExit fires after the status is stored). Leaves have no
// episodes and never fire hooks.
//
// CRITICAL PATTERNS:
//
// Single-Threaded Ticking:
// One tree must be ticked from one goroutine at a time. The tick path takes
// no locks; concurrent ticks of the same tree are undefined behavior and
// must be prevented by the caller. Distinct trees are independent.
//
// Error Is Not Failure:
// StatusError marks a broken tree (nil reference, bad arity, missing
// callback) or a leaf-reported fault. Both Sequence and Selector stop
// immediately on a child Error with the cursor left on the offending child;
// a Selector does not fall through to the next alternative.
package bt
