package engine

import (
	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/ir"
)

// recorder buffers trace events for one run.
//
// Hooks and leaf wrappers call record from inside bt.Tick; the runner drains
// the buffer after each tick and writes rows outside the tree walk, so trace
// I/O never runs in the middle of an episode.
type recorder struct {
	clock *Clock
	token string
	tick  int64
	buf   []ir.TickEvent
}

func newRecorder(clock *Clock, token string) *recorder {
	return &recorder{clock: clock, token: token}
}

// beginTick sets the tick number stamped on subsequent events.
// Tick 0 is reserved for the run_start row.
func (r *recorder) beginTick(tick int64) {
	r.tick = tick
}

// record appends one event stamped with the next clock seq.
func (r *recorder) record(event, node, kind, status string) {
	r.buf = append(r.buf, ir.TickEvent{
		RunToken: r.token,
		Seq:      r.clock.Next(),
		Tick:     r.tick,
		Event:    event,
		Node:     node,
		NodeKind: kind,
		Status:   status,
	})
}

// drain returns the buffered events and resets the buffer.
func (r *recorder) drain() []ir.TickEvent {
	events := r.buf
	r.buf = nil
	return events
}

// instrument wires rec into the tree: composite and decorator hooks record
// enter/exit events, and leaf callbacks are wrapped to record their results.
// The whole mechanism rides on the public hook API; the core has no trace
// support.
//
// Leaf wrapping re-initializes the leaf nodes, so instrument must run before
// the first tick. Instrumenting replaces any hooks already set.
func (t *Tree) instrument(rec *recorder) {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		name := t.Names[n]
		kind := n.Kind().String()

		if n.Kind().Leaf() {
			bt.Init(n, n.Kind(), recordedLeaf(rec, name, kind, t.leafTicks[n]), nil, n.UserData())
			n.Blackboard = t.Blackboard
			continue
		}

		n.OnEnter = func(*bt.Node) {
			rec.record(ir.EventEnter, name, kind, bt.StatusRunning.String())
		}
		n.OnExit = func(node *bt.Node) {
			rec.record(ir.EventExit, name, kind, node.Status().String())
		}
	}
}

// recordedLeaf wraps a leaf callback to record each result as a leaf event.
func recordedLeaf(rec *recorder, name, kind string, inner bt.TickFunc) bt.TickFunc {
	if inner == nil {
		// Malformed leaf; leave it malformed so ticking still errors.
		return nil
	}
	return func(n *bt.Node) bt.Status {
		status := inner(n)
		rec.record(ir.EventLeaf, name, kind, status.String())
		return status
	}
}
