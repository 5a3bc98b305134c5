package engine

import (
	"errors"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/compiler"
	"github.com/roach88/arbor/internal/ir"
)

// Tree is a built, executable behavior tree: the spec it came from, the
// node arena wired from it, and the shared blackboard.
//
// Nodes is the backing arena; Root and every child pointer point into it.
// The arena keeps allocation to one block and makes node identity stable
// for the lifetime of the tree, which Names relies on.
type Tree struct {
	// Spec is the definition this tree was built from.
	Spec *ir.TreeSpec

	// Hash is the canonical content hash of Spec, pinned on every run row.
	Hash string

	// Root is the entry node passed to bt.Tick.
	Root *bt.Node

	// Nodes is the arena backing the tree.
	Nodes []bt.Node

	// Names maps arena nodes back to their definition names for tracing.
	Names map[*bt.Node]string

	// Blackboard is the shared context distributed to every node.
	Blackboard *bt.Blackboard

	// leafTicks keeps the factory-built callbacks so instrument can
	// re-wire leaves with recording wrappers.
	leafTicks map[*bt.Node]bt.TickFunc
}

// Build compiles a tree spec into an executable Tree.
//
// Build validates the spec and checks graph shape first, so every structural
// problem is rejected here rather than surfacing as StatusError ticks. Leaf
// names resolve against registry; factories run once per leaf with the
// node's params. All failures return *RunError (malformed_tree,
// leaf_not_found, invalid_params).
//
// The shared blackboard starts empty; use SeedBlackboard for initial values.
func Build(spec *ir.TreeSpec, registry *Registry) (*Tree, error) {
	if spec == nil {
		return nil, NewMalformedTreeError("", 1, errors.New("tree spec is nil"))
	}
	if registry == nil {
		registry = NewRegistry()
	}

	if errs := compiler.Validate(spec); len(errs) > 0 {
		return nil, NewMalformedTreeError(spec.Name, len(errs), errs[0])
	}
	if errs := compiler.CheckGraph(spec); len(errs) > 0 {
		return nil, NewMalformedTreeError(spec.Name, len(errs), errs[0])
	}

	hash, err := ir.TreeHash(spec)
	if err != nil {
		return nil, NewMalformedTreeError(spec.Name, 1, err)
	}

	// One arena slot per node; children wire to slots by name.
	arena := make([]bt.Node, len(spec.Nodes))
	slots := make(map[string]int, len(spec.Nodes))
	for i := range spec.Nodes {
		slots[spec.Nodes[i].Name] = i
	}

	blackboard := bt.NewBlackboard()
	names := make(map[*bt.Node]string, len(spec.Nodes))
	leafTicks := make(map[*bt.Node]bt.TickFunc)

	for i := range spec.Nodes {
		ns := &spec.Nodes[i]

		kind, err := bt.ParseKind(ns.Kind)
		if err != nil {
			return nil, NewMalformedTreeError(spec.Name, 1, err)
		}

		var tick bt.TickFunc
		if kind.Leaf() {
			factory, ok := registry.Resolve(ns.Leaf)
			if !ok {
				return nil, NewLeafNotFoundError(spec.Name, ns.Name, ns.Leaf)
			}
			tick, err = factory(ns.Params)
			if err != nil {
				return nil, NewInvalidParamsError(spec.Name, ns.Name, ns.Leaf, err)
			}
		}

		var children []*bt.Node
		if len(ns.Children) > 0 {
			children = make([]*bt.Node, len(ns.Children))
			for j, childName := range ns.Children {
				children[j] = &arena[slots[childName]]
			}
		}

		bt.Init(&arena[i], kind, tick, children, ns.Params)
		arena[i].Blackboard = blackboard
		names[&arena[i]] = ns.Name
		if kind.Leaf() {
			leafTicks[&arena[i]] = tick
		}
	}

	return &Tree{
		Spec:       spec,
		Hash:       hash,
		Root:       &arena[slots[spec.Root]],
		Nodes:      arena,
		Names:      names,
		Blackboard: blackboard,
		leafTicks:  leafTicks,
	}, nil
}

// SeedBlackboard writes initial values into the shared blackboard.
// Later seeds overwrite earlier ones key by key.
func (t *Tree) SeedBlackboard(values map[string]any) {
	for k, v := range values {
		t.Blackboard.Set(k, v)
	}
}

// NameOf returns the definition name of an arena node, or "" for a node
// that is not part of this tree.
func (t *Tree) NameOf(n *bt.Node) string {
	return t.Names[n]
}

// ByName returns the named arena node, or nil if the tree has no such node.
func (t *Tree) ByName(name string) *bt.Node {
	for i := range t.Spec.Nodes {
		if t.Spec.Nodes[i].Name == name {
			return &t.Nodes[i]
		}
	}
	return nil
}
