package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script is a canned leaf callback. It returns its statuses in order,
// repeats the last one once exhausted, and counts invocations.
type script struct {
	statuses []Status
	calls    int
}

func (s *script) tick(*Node) Status {
	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	return s.statuses[i]
}

func leaf(t *testing.T, statuses ...Status) (*Node, *script) {
	t.Helper()
	s := &script{statuses: statuses}
	n := &Node{}
	Init(n, KindAction, s.tick, nil, nil)
	return n, s
}

func composite(t *testing.T, kind Kind, children ...*Node) *Node {
	t.Helper()
	n := &Node{}
	Init(n, kind, nil, children, nil)
	return n
}

// hookCount records hook firings on a node.
type hookCount struct {
	enters int
	exits  int
}

func (h *hookCount) install(n *Node) {
	n.OnEnter = func(*Node) { h.enters++ }
	n.OnExit = func(*Node) { h.exits++ }
}

// =============================================================================
// Dispatcher Tests
// =============================================================================

func TestTick_NilNode(t *testing.T) {
	assert.Equal(t, StatusError, Tick(nil))
}

func TestTick_UnknownKind(t *testing.T) {
	n := &Node{}
	Init(n, Kind(42), nil, nil, nil)

	assert.Equal(t, StatusError, Tick(n))
	assert.Equal(t, StatusError, n.Status(), "dispatcher must record the error status")
}

func TestTick_StatusAlwaysRecorded(t *testing.T) {
	// The persisted status equals the last tick's result for every handler
	// outcome, including malformed nodes.
	cases := []struct {
		name string
		node func() *Node
		want Status
	}{
		{"leaf success", func() *Node { n, _ := leaf(t, StatusSuccess); return n }, StatusSuccess},
		{"leaf running", func() *Node { n, _ := leaf(t, StatusRunning); return n }, StatusRunning},
		{"leaf without callback", func() *Node {
			n := &Node{}
			Init(n, KindAction, nil, nil, nil)
			return n
		}, StatusError},
		{"inverter without children", func() *Node { return composite(t, KindInverter) }, StatusError},
	}
	for _, tc := range cases {
		n := tc.node()
		got := Tick(n)
		assert.Equal(t, tc.want, got, tc.name)
		assert.Equal(t, tc.want, n.Status(), tc.name)
	}
}

// =============================================================================
// Leaf Tests
// =============================================================================

func TestTick_Leaf_MissingCallback(t *testing.T) {
	for _, kind := range []Kind{KindAction, KindCondition} {
		n := &Node{}
		Init(n, kind, nil, nil, nil)

		assert.Equal(t, StatusError, Tick(n), "kind %s", kind)
		assert.Equal(t, StatusError, n.Status(), "kind %s", kind)
	}
}

func TestTick_Leaf_StatusPassThrough(t *testing.T) {
	for _, want := range []Status{StatusSuccess, StatusFailure, StatusRunning, StatusError} {
		n, s := leaf(t, want)

		assert.Equal(t, want, Tick(n))
		assert.Equal(t, want, n.Status())
		assert.Equal(t, 1, s.calls)
	}
}

func TestTick_Leaf_NeverFiresHooks(t *testing.T) {
	n, _ := leaf(t, StatusSuccess)
	var hooks hookCount
	hooks.install(n)

	Tick(n)

	assert.Equal(t, 0, hooks.enters, "leaves have no episodes")
	assert.Equal(t, 0, hooks.exits)
}

func TestTick_Leaf_CallbackSeesNode(t *testing.T) {
	n := &Node{}
	Init(n, KindCondition, func(self *Node) Status {
		if self.UserData() == "threshold" && self.Blackboard != nil {
			return StatusSuccess
		}
		return StatusFailure
	}, nil, "threshold")
	n.Blackboard = NewBlackboard()

	assert.Equal(t, StatusSuccess, Tick(n))
}

// =============================================================================
// Sequence Tests
// =============================================================================

func TestTick_Sequence_AllSucceed(t *testing.T) {
	c1, s1 := leaf(t, StatusSuccess)
	c2, s2 := leaf(t, StatusSuccess)
	c3, s3 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, c2, c3)

	assert.Equal(t, StatusSuccess, Tick(seq))
	assert.Equal(t, 3, seq.Cursor(), "cursor at child count signals exhaustion")
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 1, s2.calls)
	assert.Equal(t, 1, s3.calls)
}

func TestTick_Sequence_FailureStops(t *testing.T) {
	c1, s1 := leaf(t, StatusSuccess)
	c2, s2 := leaf(t, StatusFailure)
	c3, s3 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, c2, c3)

	assert.Equal(t, StatusFailure, Tick(seq))
	assert.Equal(t, 1, seq.Cursor(), "cursor marks the failing child")
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 1, s2.calls)
	assert.Equal(t, 0, s3.calls, "children after the stop are not evaluated")
}

func TestTick_Sequence_ErrorStops(t *testing.T) {
	c1, _ := leaf(t, StatusSuccess)
	c2, _ := leaf(t, StatusError)
	c3, s3 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, c2, c3)

	assert.Equal(t, StatusError, Tick(seq))
	assert.Equal(t, 1, seq.Cursor())
	assert.Equal(t, 0, s3.calls)
}

func TestTick_Sequence_Empty_VacuousSuccess(t *testing.T) {
	seq := composite(t, KindSequence)
	var hooks hookCount
	hooks.install(seq)

	assert.Equal(t, StatusSuccess, Tick(seq))
	assert.Equal(t, 0, seq.Cursor())
	assert.Equal(t, 1, hooks.enters, "empty episode still opens")
	assert.Equal(t, 1, hooks.exits, "empty episode still closes")
}

func TestTick_Sequence_NilChildSlot(t *testing.T) {
	c1, _ := leaf(t, StatusSuccess)
	c3, s3 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, nil, c3)

	assert.Equal(t, StatusError, Tick(seq))
	assert.Equal(t, 1, seq.Cursor(), "cursor marks the nil slot")
	assert.Equal(t, 0, s3.calls)
}

func TestTick_Sequence_RunningResumes(t *testing.T) {
	// Resumption law: while child k is Running, re-ticking the parent
	// resumes at k without re-evaluating children 0..k-1.
	c1, s1 := leaf(t, StatusSuccess)
	c2, s2 := leaf(t, StatusRunning, StatusRunning, StatusSuccess)
	c3, s3 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, c2, c3)

	assert.Equal(t, StatusRunning, Tick(seq))
	assert.Equal(t, 1, seq.Cursor())
	assert.Equal(t, StatusRunning, seq.Status())

	assert.Equal(t, StatusRunning, Tick(seq))
	assert.Equal(t, 1, seq.Cursor())
	assert.Equal(t, 1, s1.calls, "finished child must not run again mid-episode")

	assert.Equal(t, StatusSuccess, Tick(seq))
	assert.Equal(t, 3, seq.Cursor())
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 3, s2.calls)
	assert.Equal(t, 1, s3.calls)
}

func TestTick_Sequence_RestartAfterTerminal(t *testing.T) {
	// Scenario: after a terminal result, the next tick is a fresh episode
	// with the cursor reset and OnEnter fired again.
	c1, s1 := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1)
	var hooks hookCount
	hooks.install(seq)

	require.Equal(t, StatusSuccess, Tick(seq))
	require.Equal(t, StatusSuccess, Tick(seq))

	assert.Equal(t, 2, s1.calls, "fresh episode re-evaluates from the start")
	assert.Equal(t, 2, hooks.enters)
	assert.Equal(t, 2, hooks.exits)
}

// =============================================================================
// Selector Tests
// =============================================================================

func TestTick_Selector_FirstSuccessStops(t *testing.T) {
	c1, s1 := leaf(t, StatusFailure)
	c2, s2 := leaf(t, StatusSuccess)
	c3, s3 := leaf(t, StatusFailure)
	sel := composite(t, KindSelector, c1, c2, c3)

	assert.Equal(t, StatusSuccess, Tick(sel))
	assert.Equal(t, 1, sel.Cursor(), "cursor marks the succeeding child")
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 1, s2.calls)
	assert.Equal(t, 0, s3.calls)
}

func TestTick_Selector_AllFail(t *testing.T) {
	c1, _ := leaf(t, StatusFailure)
	c2, _ := leaf(t, StatusFailure)
	sel := composite(t, KindSelector, c1, c2)

	assert.Equal(t, StatusFailure, Tick(sel))
	assert.Equal(t, 2, sel.Cursor())
}

func TestTick_Selector_ErrorStops(t *testing.T) {
	// A child Error stops the selector immediately; it is not treated as
	// one more failed alternative.
	c1, _ := leaf(t, StatusFailure)
	c2, _ := leaf(t, StatusError)
	c3, s3 := leaf(t, StatusSuccess)
	sel := composite(t, KindSelector, c1, c2, c3)

	assert.Equal(t, StatusError, Tick(sel))
	assert.Equal(t, 1, sel.Cursor())
	assert.Equal(t, 0, s3.calls, "later alternatives must not run after an error")
}

func TestTick_Selector_Empty_VacuousFailure(t *testing.T) {
	sel := composite(t, KindSelector)
	var hooks hookCount
	hooks.install(sel)

	assert.Equal(t, StatusFailure, Tick(sel))
	assert.Equal(t, 1, hooks.enters)
	assert.Equal(t, 1, hooks.exits)
}

func TestTick_Selector_NilChildSlot(t *testing.T) {
	c1, _ := leaf(t, StatusFailure)
	sel := composite(t, KindSelector, c1, nil)

	assert.Equal(t, StatusError, Tick(sel))
	assert.Equal(t, 1, sel.Cursor())
}

func TestTick_Selector_RunningResumes(t *testing.T) {
	c1, s1 := leaf(t, StatusFailure)
	c2, _ := leaf(t, StatusRunning, StatusSuccess)
	sel := composite(t, KindSelector, c1, c2)

	assert.Equal(t, StatusRunning, Tick(sel))
	assert.Equal(t, 1, sel.Cursor())

	assert.Equal(t, StatusSuccess, Tick(sel))
	assert.Equal(t, 1, sel.Cursor())
	assert.Equal(t, 1, s1.calls, "failed alternative must not be retried mid-episode")
}

// =============================================================================
// Inverter Tests
// =============================================================================

func TestTick_Inverter_SwapsSuccessAndFailure(t *testing.T) {
	succeed, _ := leaf(t, StatusSuccess)
	inv := composite(t, KindInverter, succeed)
	assert.Equal(t, StatusFailure, Tick(inv))

	fail, _ := leaf(t, StatusFailure)
	inv = composite(t, KindInverter, fail)
	assert.Equal(t, StatusSuccess, Tick(inv))
}

func TestTick_Inverter_PassesRunning(t *testing.T) {
	child, _ := leaf(t, StatusRunning, StatusSuccess)
	inv := composite(t, KindInverter, child)
	var hooks hookCount
	hooks.install(inv)

	assert.Equal(t, StatusRunning, Tick(inv))
	assert.Equal(t, 1, hooks.enters)
	assert.Equal(t, 0, hooks.exits, "running keeps the episode open")

	assert.Equal(t, StatusFailure, Tick(inv), "child success inverts on completion")
	assert.Equal(t, 1, hooks.enters, "resumed tick must not re-enter")
	assert.Equal(t, 1, hooks.exits)
}

func TestTick_Inverter_PassesErrorUnmapped(t *testing.T) {
	child, _ := leaf(t, StatusError)
	inv := composite(t, KindInverter, child)
	var hooks hookCount
	hooks.install(inv)

	assert.Equal(t, StatusError, Tick(inv))
	assert.Equal(t, 1, hooks.exits, "error is terminal, episode closes")
}

func TestTick_Inverter_WrongArity(t *testing.T) {
	c1, s1 := leaf(t, StatusSuccess)
	c2, s2 := leaf(t, StatusSuccess)

	for _, inv := range []*Node{
		composite(t, KindInverter),
		composite(t, KindInverter, c1, c2),
	} {
		var hooks hookCount
		hooks.install(inv)

		assert.Equal(t, StatusError, Tick(inv))
		assert.Equal(t, StatusError, Tick(inv), "arity errors repeat every tick")
		assert.Equal(t, StatusError, inv.Status())
		assert.Equal(t, 0, hooks.enters, "malformed inverter fires no hooks")
		assert.Equal(t, 0, hooks.exits)
	}
	assert.Equal(t, 0, s1.calls, "children of a malformed inverter are never ticked")
	assert.Equal(t, 0, s2.calls)
}

func TestTick_Inverter_NilChild(t *testing.T) {
	inv := composite(t, KindInverter, nil)
	var hooks hookCount
	hooks.install(inv)

	assert.Equal(t, StatusError, Tick(inv))
	assert.Equal(t, StatusError, inv.Status())
	assert.Equal(t, 1, hooks.enters, "arity is valid, so the episode opened")
	assert.Equal(t, 0, hooks.exits, "nil child aborts before the episode closes")
}

// =============================================================================
// Hook Law Tests
// =============================================================================

func TestTick_Hooks_OncePerEpisode(t *testing.T) {
	child, _ := leaf(t, StatusRunning, StatusRunning, StatusSuccess, StatusRunning, StatusFailure)
	seq := composite(t, KindSequence, child)
	var hooks hookCount
	hooks.install(seq)

	// Episode 1: Running, Running, Success.
	Tick(seq)
	Tick(seq)
	Tick(seq)
	assert.Equal(t, 1, hooks.enters)
	assert.Equal(t, 1, hooks.exits)

	// Episode 2: Running, Failure.
	Tick(seq)
	Tick(seq)
	assert.Equal(t, 2, hooks.enters)
	assert.Equal(t, 2, hooks.exits)
}

func TestTick_Hooks_ExitSeesFinalStatus(t *testing.T) {
	child, _ := leaf(t, StatusFailure)
	seq := composite(t, KindSequence, child)

	var observed Status
	seq.OnExit = func(n *Node) { observed = n.Status() }

	Tick(seq)
	assert.Equal(t, StatusFailure, observed, "status must be stored before OnExit fires")
}

func TestTick_Hooks_EnterSeesResetCursor(t *testing.T) {
	c1, _ := leaf(t, StatusSuccess)
	c2, _ := leaf(t, StatusSuccess)
	seq := composite(t, KindSequence, c1, c2)

	cursors := []int{}
	seq.OnEnter = func(n *Node) { cursors = append(cursors, n.Cursor()) }

	Tick(seq)
	Tick(seq)
	assert.Equal(t, []int{0, 0}, cursors, "OnEnter fires after the cursor reset")
}

// =============================================================================
// Scenario Tests
// =============================================================================

func TestScenario_ConditionGatedAction(t *testing.T) {
	// Sequence of a condition and a three-tick action: the tree reports
	// Running, Running, Success and the condition runs only on the first
	// tick of the episode.
	cond := &Node{}
	condCalls := 0
	Init(cond, KindCondition, func(*Node) Status {
		condCalls++
		return StatusSuccess
	}, nil, nil)

	act, _ := leaf(t, StatusRunning, StatusRunning, StatusSuccess)
	root := composite(t, KindSequence, cond, act)

	var got []Status
	for i := 0; i < 3; i++ {
		got = append(got, Tick(root))
	}

	assert.Equal(t, []Status{StatusRunning, StatusRunning, StatusSuccess}, got)
	assert.Equal(t, 1, condCalls, "guard runs once per episode")
}

func TestScenario_FallbackSelector(t *testing.T) {
	// Selector over a failing primary and a succeeding fallback completes
	// in a single tick with both children evaluated.
	primary, sp := leaf(t, StatusFailure)
	fallback, sf := leaf(t, StatusSuccess)
	root := composite(t, KindSelector, primary, fallback)

	assert.Equal(t, StatusSuccess, Tick(root))
	assert.Equal(t, 1, sp.calls)
	assert.Equal(t, 1, sf.calls)
}

func TestScenario_DeepResumption(t *testing.T) {
	// A running leaf two levels down holds the whole path open; finished
	// siblings along the path are not re-evaluated on resumption.
	guard, sg := leaf(t, StatusFailure)
	worker, sw := leaf(t, StatusRunning, StatusSuccess)
	inner := composite(t, KindSelector, guard, worker)
	after, sa := leaf(t, StatusSuccess)
	root := composite(t, KindSequence, inner, after)

	assert.Equal(t, StatusRunning, Tick(root))
	assert.Equal(t, 0, root.Cursor())
	assert.Equal(t, 1, inner.Cursor())

	assert.Equal(t, StatusSuccess, Tick(root))
	assert.Equal(t, 1, sg.calls, "inner guard must not be retried")
	assert.Equal(t, 2, sw.calls)
	assert.Equal(t, 1, sa.calls)
	assert.Equal(t, 2, root.Cursor())
}
