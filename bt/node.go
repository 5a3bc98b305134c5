package bt

// TickFunc is the leaf callback contract. It receives the node being ticked
// and returns one of the four run statuses. Callbacks may read UserData()
// and read or write the Blackboard field; the structural fields (kind,
// children, cursor) are unexported and cannot be mutated from a callback.
type TickFunc func(*Node) Status

// Node is a single behavior tree node. The same struct represents leaves,
// composites, and decorators; the kind tag selects the behavior.
//
// Structural fields are unexported and fixed by Init. The exported fields
// (OnEnter, OnExit, Blackboard) are plain mutable wiring the caller sets
// after Init, before the first tick.
type Node struct {
	kind     Kind
	status   Status
	tick     TickFunc
	children []*Node
	cursor   int
	userData any

	// OnEnter, if set, fires when a composite or decorator starts a
	// fresh episode, after the cursor reset. Never fires on leaves.
	OnEnter func(*Node)

	// OnExit, if set, fires when a composite or decorator episode ends
	// with a terminal status, after the status is stored. Never fires on
	// leaves.
	OnExit func(*Node)

	// Blackboard is shared mutable context, opaque to the core. Tree
	// builders typically point every node at one shared value; leaf
	// callbacks use it to communicate.
	Blackboard any
}

// Init initializes a node in place. It is the only constructor; n points at
// caller-owned storage (a local, an array element, an arena slot).
//
// kind and userData are fixed for the node's lifetime. children is stored as
// given, not copied; the core never modifies the slice. Leaves pass nil or
// an empty slice. tick is required for leaves and ignored elsewhere.
//
// Init resets the node completely: status becomes StatusIdle, the cursor
// zeroes, and any previously set hooks and Blackboard are cleared.
// A nil n is ignored.
func Init(n *Node, kind Kind, tick TickFunc, children []*Node, userData any) {
	if n == nil {
		return
	}
	n.kind = kind
	n.status = StatusIdle
	n.tick = tick
	n.children = children
	n.cursor = 0
	n.userData = userData
	n.OnEnter = nil
	n.OnExit = nil
	n.Blackboard = nil
}

// Kind returns the node's kind tag.
func (n *Node) Kind() Kind {
	return n.kind
}

// Status returns the result of the most recent tick, or StatusIdle if the
// node has not been ticked since Init.
func (n *Node) Status() Status {
	return n.status
}

// UserData returns the opaque per-node value given to Init.
func (n *Node) UserData() any {
	return n.userData
}

// NumChildren returns the number of child slots.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Child returns the i-th child, or nil if i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Cursor returns the composite resume index. It is in [0, NumChildren()];
// equality with NumChildren() means the last episode ran off the end.
// After a Running tick it names the child to resume; after Failure or Error
// it names the child that stopped the episode.
func (n *Node) Cursor() int {
	return n.cursor
}

func (n *Node) enter() {
	if n.OnEnter != nil {
		n.OnEnter(n)
	}
}

func (n *Node) exit() {
	if n.OnExit != nil {
		n.OnExit(n)
	}
}
