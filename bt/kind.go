package bt

import "fmt"

// Kind tags a node with its behavior. It is fixed at Init and selects the
// handler the dispatcher routes a tick to.
type Kind uint8

const (
	// KindAction is a leaf that does work via its tick callback.
	KindAction Kind = iota

	// KindCondition is a leaf that tests something via its tick callback.
	// The core treats Action and Condition identically; the distinction
	// is documentation for tree authors and tooling.
	KindCondition

	// KindSequence runs children in order and succeeds only if all
	// succeed (AND).
	KindSequence

	// KindSelector runs children in order and succeeds on the first
	// success (OR).
	KindSelector

	// KindInverter wraps exactly one child and swaps Success and Failure.
	KindInverter
)

// Leaf reports whether k is a leaf kind (Action or Condition).
func (k Kind) Leaf() bool {
	return k == KindAction || k == KindCondition
}

// String returns the lower-case name used in tree definitions and traces.
func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindCondition:
		return "condition"
	case KindSequence:
		return "sequence"
	case KindSelector:
		return "selector"
	case KindInverter:
		return "inverter"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a tree-definition kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "action":
		return KindAction, nil
	case "condition":
		return KindCondition, nil
	case "sequence":
		return KindSequence, nil
	case "selector":
		return KindSelector, nil
	case "inverter":
		return KindInverter, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}
