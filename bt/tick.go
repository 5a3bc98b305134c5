package bt

// Tick performs one synchronous depth-first evaluation pass over the tree
// rooted at n and returns the root's new status.
//
// A nil n returns StatusError with no side effects. Otherwise the result is
// also stored in n's status, including for malformed nodes, so the persisted
// status always equals the last tick's result.
func Tick(n *Node) Status {
	if n == nil {
		return StatusError
	}

	var result Status
	switch n.kind {
	case KindAction, KindCondition:
		result = tickLeaf(n)
	case KindSequence:
		result = tickSequence(n)
	case KindSelector:
		result = tickSelector(n)
	case KindInverter:
		result = tickInverter(n)
	default:
		result = StatusError
	}

	n.status = result
	return result
}

// tickLeaf invokes the user callback and passes its status through verbatim.
// A leaf without a callback is malformed and errors without invoking
// anything. Leaves never fire hooks.
func tickLeaf(n *Node) Status {
	if n.tick == nil {
		return StatusError
	}
	return n.tick(n)
}

// tickSequence runs children in order until one does not succeed (AND).
//
// A fresh episode (prior status not Running) resets the cursor and fires
// OnEnter. Resumption re-ticks the child that was Running; children that
// already succeeded are not re-evaluated. A child Failure or Error stops
// the episode with that status and the cursor on the stopping child. An
// empty sequence is vacuously successful.
func tickSequence(n *Node) Status {
	if n.status != StatusRunning {
		n.cursor = 0
		n.enter()
	}

	result := StatusSuccess // vacuous result for an empty or exhausted child list
	for i := n.cursor; i < len(n.children); i++ {
		child := n.children[i]
		if child == nil {
			n.cursor = i
			result = StatusError
			break
		}

		s := Tick(child)
		if s == StatusRunning {
			// Episode stays open: record the resume point, skip OnExit.
			n.cursor = i
			n.status = StatusRunning
			return StatusRunning
		}
		if s != StatusSuccess {
			// Failure or Error stops the walk; cursor marks the child.
			n.cursor = i
			result = s
			break
		}
		n.cursor = i + 1
	}

	n.status = result
	n.exit()
	return result
}

// tickSelector runs children in order until one does not fail (OR).
//
// Mirror image of tickSequence: Success and Error stop the episode, Failure
// advances to the next alternative, and an empty selector is vacuously
// failed. A child Error is a stop, not a fall-through; a broken alternative
// must not be papered over by trying its sibling.
func tickSelector(n *Node) Status {
	if n.status != StatusRunning {
		n.cursor = 0
		n.enter()
	}

	result := StatusFailure // vacuous result for an empty or exhausted child list
	for i := n.cursor; i < len(n.children); i++ {
		child := n.children[i]
		if child == nil {
			n.cursor = i
			result = StatusError
			break
		}

		s := Tick(child)
		if s == StatusRunning {
			n.cursor = i
			n.status = StatusRunning
			return StatusRunning
		}
		if s != StatusFailure {
			// Success or Error stops the walk; cursor marks the child.
			n.cursor = i
			result = s
			break
		}
		n.cursor = i + 1
	}

	n.status = result
	n.exit()
	return result
}

// tickInverter ticks its sole child and swaps Success and Failure. Running
// and Error pass through unmapped.
//
// The arity check precedes everything: an inverter without exactly one
// child errors every tick without touching children or firing hooks. A nil
// sole child errors after OnEnter may have fired, with no OnExit; the
// dispatcher still records the Error status.
func tickInverter(n *Node) Status {
	if len(n.children) != 1 {
		return StatusError
	}

	if n.status != StatusRunning {
		n.enter()
	}

	child := n.children[0]
	if child == nil {
		return StatusError
	}

	result := Tick(child)
	switch result {
	case StatusSuccess:
		result = StatusFailure
	case StatusFailure:
		result = StatusSuccess
	}

	n.status = result
	if result != StatusRunning {
		n.exit()
	}
	return result
}
