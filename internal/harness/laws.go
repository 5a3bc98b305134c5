package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/ir"
)

// VerifyTraceLaws checks the structural invariants every recorded run must
// satisfy, independent of what the scenario asserts:
//
//   - exactly one run_start (first, tick 0) and one run_end (last)
//   - seq strictly increasing across the trace
//   - exactly one tick row per executed step, numbered consecutively from 1
//   - enter and exit rows pair up per node, one open episode at most, and
//     no episode stays open past a terminal final tick
//   - the run_end status equals the last tick status
//
// Returns one message per violation; an empty slice means the trace is sound.
func VerifyTraceLaws(trace []ir.TickEvent, steps int) []string {
	var violations []string
	fail := func(lawType, expected, actual string) {
		violations = append(violations, (&AssertionError{
			Type:     lawType,
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		}).Error())
	}

	if len(trace) == 0 {
		fail("law:bookends", "run_start and run_end bracketing the trace", "empty trace")
		return violations
	}

	if first := trace[0]; first.Event != ir.EventRunStart || first.Tick != 0 {
		fail("law:bookends", "first event run_start at tick 0",
			fmt.Sprintf("%s at tick %d", first.Event, first.Tick))
	}
	if last := trace[len(trace)-1]; last.Event != ir.EventRunEnd {
		fail("law:bookends", "last event run_end", last.Event)
	}

	starts, ends := 0, 0
	open := make(map[string]int)
	var ticks []ir.TickEvent
	var lastSeq int64

	for i, ev := range trace {
		if i > 0 && ev.Seq <= lastSeq {
			fail("law:seq_order", "strictly increasing seq",
				fmt.Sprintf("seq %d follows %d at row %d", ev.Seq, lastSeq, i+1))
		}
		lastSeq = ev.Seq

		switch ev.Event {
		case ir.EventRunStart:
			starts++
		case ir.EventRunEnd:
			ends++
		case ir.EventTick:
			ticks = append(ticks, ev)
		case ir.EventEnter:
			open[ev.Node]++
			if open[ev.Node] > 1 {
				fail("law:episode_pairing",
					fmt.Sprintf("node %s entered once per episode", ev.Node),
					"entered again without an exit")
			}
		case ir.EventExit:
			open[ev.Node]--
			if open[ev.Node] < 0 {
				fail("law:episode_pairing",
					fmt.Sprintf("exit of %s paired with an enter", ev.Node),
					"exit without an open episode")
				open[ev.Node] = 0
			}
		}
	}

	if starts != 1 {
		fail("law:bookends", "exactly one run_start", fmt.Sprintf("%d", starts))
	}
	if ends != 1 {
		fail("law:bookends", "exactly one run_end", fmt.Sprintf("%d", ends))
	}

	if len(ticks) != steps {
		fail("law:tick_per_step",
			fmt.Sprintf("%d tick row(s), one per step", steps),
			fmt.Sprintf("%d tick row(s)", len(ticks)))
	}
	for i, ev := range ticks {
		if ev.Tick != int64(i+1) {
			fail("law:tick_per_step",
				fmt.Sprintf("tick row %d numbered %d", i+1, i+1),
				fmt.Sprintf("numbered %d", ev.Tick))
			break
		}
	}

	if len(ticks) > 0 {
		lastTick := ticks[len(ticks)-1]

		// A terminal final tick means every episode closed: any node still
		// Running would have forced the root to report Running.
		if status, err := bt.ParseStatus(lastTick.Status); err == nil && status.Terminal() {
			for _, node := range sortedOpenNodes(open) {
				fail("law:episode_pairing",
					fmt.Sprintf("no open episode for %s after a terminal tick", node),
					fmt.Sprintf("%d unclosed enter(s)", open[node]))
			}
		}

		if last := trace[len(trace)-1]; last.Event == ir.EventRunEnd && last.Status != lastTick.Status {
			fail("law:run_end_status",
				fmt.Sprintf("run_end status %s, matching the last tick", lastTick.Status),
				last.Status)
		}
	}

	return violations
}

// sortedOpenNodes returns the names with unclosed episodes in stable order.
func sortedOpenNodes(open map[string]int) []string {
	var nodes []string
	for node, n := range open {
		if n > 0 {
			nodes = append(nodes, node)
		}
	}
	sort.Strings(nodes)
	return nodes
}
