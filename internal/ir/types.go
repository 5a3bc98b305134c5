package ir

// Node kind names as they appear in tree definitions, blueprints, and trace
// rows. The engine maps them onto bt.Kind at build time; ir keeps them as
// strings so this package stays dependency-free.
const (
	KindAction    = "action"
	KindCondition = "condition"
	KindSequence  = "sequence"
	KindSelector  = "selector"
	KindInverter  = "inverter"
)

// ValidKinds defines the allowed node kinds.
var ValidKinds = map[string]bool{
	KindAction:    true,
	KindCondition: true,
	KindSequence:  true,
	KindSelector:  true,
	KindInverter:  true,
}

// TreeSpec is a compiled behavior tree definition.
//
// Nodes are stored in definition order for diagnostics, but identity
// (TreeHash) is computed from the canonical map form, which keys nodes by
// name, so two definitions that differ only in declaration order hash the
// same.
type TreeSpec struct {
	Name  string     `json:"name"`
	Root  string     `json:"root"`
	Nodes []NodeSpec `json:"nodes"`
}

// NodeSpec is one node of a compiled tree. Children reference other nodes
// by name; child order is semantic and preserved. Leaf names select a
// registered leaf implementation, and Params is its opaque configuration
// (becomes the node's user data at build time).
type NodeSpec struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Children []string       `json:"children,omitempty"`
	Leaf     string         `json:"leaf,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Node returns the named node spec, or nil if the tree has no such node.
func (t *TreeSpec) Node(name string) *NodeSpec {
	for i := range t.Nodes {
		if t.Nodes[i].Name == name {
			return &t.Nodes[i]
		}
	}
	return nil
}

// CanonicalMap returns the tree in the form TreeHash hashes: a plain map
// ready for MarshalCanonical. Nodes become an object keyed by node name;
// empty optional fields are omitted so absence and emptiness hash alike.
func (t *TreeSpec) CanonicalMap() map[string]any {
	nodes := make(map[string]any, len(t.Nodes))
	for i := range t.Nodes {
		nodes[t.Nodes[i].Name] = t.Nodes[i].canonicalMap()
	}
	return map[string]any{
		"name":  t.Name,
		"root":  t.Root,
		"nodes": nodes,
	}
}

func (n *NodeSpec) canonicalMap() map[string]any {
	m := map[string]any{"kind": n.Kind}
	if len(n.Children) > 0 {
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = c
		}
		m["children"] = children
	}
	if n.Leaf != "" {
		m["leaf"] = n.Leaf
	}
	if len(n.Params) > 0 {
		m["params"] = n.Params
	}
	return m
}

// TickEvent is one row of a run's trace: something the instrumented tree
// did at a logical instant. Event names are the EventX constants.
//
// Every row names a node. Run-level rows (run_start, run_end) and tick rows
// carry the root node's name and kind. Enter rows carry status RUNNING, the
// state of the episode they open.
type TickEvent struct {
	RunToken string `json:"run_token"`
	Seq      int64  `json:"seq"`  // logical clock, unique per run
	Tick     int64  `json:"tick"` // 1-based tick number; 0 for run_start
	Event    string `json:"event"`
	Node     string `json:"node"`
	NodeKind string `json:"node_kind"`
	Status   string `json:"status"`
}

// Trace event names.
const (
	EventRunStart = "run_start" // run began; status carries the initial root status
	EventEnter    = "enter"     // composite/decorator episode opened
	EventLeaf     = "leaf"      // leaf callback returned; status is its result
	EventExit     = "exit"      // composite/decorator episode closed; status is terminal
	EventTick     = "tick"      // one full root tick finished; status is the root status
	EventRunEnd   = "run_end"   // run finished; status is the final root status
)

// ValidEvents defines the allowed trace event names.
var ValidEvents = map[string]bool{
	EventRunStart: true,
	EventEnter:    true,
	EventLeaf:     true,
	EventExit:     true,
	EventTick:     true,
	EventRunEnd:   true,
}
