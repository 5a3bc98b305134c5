package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/arbor/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []ir.TickEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] tick=%d %s %s %s\n", i+1, ev.Tick, ev.Event, ev.Node, ev.Status)
	}

	return buf.String()
}

// assertStatusSequence checks that the per-tick root statuses match exactly.
func assertStatusSequence(statuses []string, assertion Assertion, trace []ir.TickEvent) error {
	if !slices.Equal(statuses, assertion.Statuses) {
		return &AssertionError{
			Type:     AssertStatusSequence,
			Expected: fmt.Sprintf("root statuses %v", assertion.Statuses),
			Actual:   fmt.Sprintf("root statuses %v", statuses),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalStatus checks the root status after the last tick.
func assertFinalStatus(finalStatus string, assertion Assertion, trace []ir.TickEvent) error {
	if finalStatus != assertion.Status {
		return &AssertionError{
			Type:     AssertFinalStatus,
			Expected: fmt.Sprintf("final status %s", assertion.Status),
			Actual:   finalStatus,
			Trace:    trace,
		}
	}
	return nil
}

// assertEventCount checks that rows matching the node/event filter appear
// exactly the specified number of times. Count 0 asserts absence.
func assertEventCount(trace []ir.TickEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if assertion.Node != "" && ev.Node != assertion.Node {
			continue
		}
		if assertion.Event != "" && ev.Event != assertion.Event {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d event(s) matching %s", assertion.Count, describeEventFilter(assertion)),
			Actual:   fmt.Sprintf("%d event(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// describeEventFilter renders an event_count filter for error messages.
func describeEventFilter(a Assertion) string {
	var parts []string
	if a.Node != "" {
		parts = append(parts, "node="+a.Node)
	}
	if a.Event != "" {
		parts = append(parts, "event="+a.Event)
	}
	return strings.Join(parts, " ")
}

// assertEventOrder checks that nodes first appear in the trace in the
// specified order. Appearances don't need to be consecutive (intervening
// rows are allowed). Run-level rows carry the root node, so ordering
// against the root is dominated by run_start.
func assertEventOrder(trace []ir.TickEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected node
	positions := make(map[string]int)

	for i, ev := range trace {
		for _, node := range assertion.Nodes {
			if ev.Node == node && positions[node] == 0 {
				positions[node] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all nodes found
	for _, node := range assertion.Nodes {
		if positions[node] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all nodes present: %v", assertion.Nodes),
				Actual:   fmt.Sprintf("missing node: %s", node),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Nodes); i++ {
		prev := assertion.Nodes[i-1]
		curr := assertion.Nodes[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("nodes first seen in order: %v", assertion.Nodes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatusSequence:
			err = assertStatusSequence(result.Statuses, assertion, result.Trace)
		case AssertFinalStatus:
			err = assertFinalStatus(result.FinalStatus, assertion, result.Trace)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
