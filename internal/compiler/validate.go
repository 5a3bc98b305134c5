package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/arbor/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// TreeSpec structural errors (E101-E113)
	ErrTreeNameInvalid     = "E101" // tree name missing or malformed
	ErrRootMissing         = "E102" // root is required
	ErrRootUndefined       = "E103" // root references an undefined node
	ErrInvalidKind         = "E104" // unknown node kind
	ErrDuplicateNodeName   = "E105" // duplicate node name
	ErrFloatParamForbidden = "E106" // leaf param not canonically representable (float, null)
	ErrUndefinedChild      = "E107" // child references an undefined node
	ErrLeafMissing         = "E108" // action/condition without a leaf implementation
	ErrLeafOnComposite     = "E109" // composite/decorator naming a leaf implementation
	ErrChildrenOnLeaf      = "E110" // action/condition with children
	ErrInverterArity       = "E111" // inverter needs exactly one child
	ErrNodeNameInvalid     = "E112" // node name malformed
	ErrDuplicateChildRef   = "E113" // same child listed twice in one node

	// Graph shape errors (E114-E116), reported by CheckGraph
	ErrCycleDetected  = "E114" // node is its own descendant
	ErrMultipleParent = "E115" // node referenced as child by more than one parent
	ErrUnreachable    = "E116" // node not reachable from the root
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast). Graph shape (cycles,
// sharing, reachability) is CheckGraph's job; Validate covers everything
// checkable node by node.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TreeSpec:
		return validateTreeSpec(spec)
	case ir.TreeSpec:
		return validateTreeSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// nodeNamePattern matches valid tree and node names. Names end up in trace
// rows, CLI flags, and file names, so they stay plain identifiers.
var nodeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTreeSpec checks the spec's own fields and every node entry.
func validateTreeSpec(spec *ir.TreeSpec) []ValidationError {
	var errs []ValidationError

	// E101: tree name must be a valid identifier
	if !nodeNamePattern.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("tree name %q must be a plain identifier", spec.Name),
			Code:    ErrTreeNameInvalid,
		})
	}

	// E102: root is required
	if strings.TrimSpace(spec.Root) == "" {
		errs = append(errs, ValidationError{
			Field:   "root",
			Message: "root is required and must be non-empty",
			Code:    ErrRootMissing,
		})
	}

	// Track names for duplicate and reference checks
	defined := make(map[string]bool)
	for _, node := range spec.Nodes {
		defined[node.Name] = true
	}

	// E103: root must name a defined node
	if spec.Root != "" && !defined[spec.Root] {
		errs = append(errs, ValidationError{
			Field:   "root",
			Message: fmt.Sprintf("root references undefined node %q", spec.Root),
			Code:    ErrRootUndefined,
		})
	}

	seen := make(map[string]bool)
	for i, node := range spec.Nodes {
		field := fmt.Sprintf("node.%s", node.Name)

		// E112: node name must be a valid identifier
		if !nodeNamePattern.MatchString(node.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].name", i),
				Message: fmt.Sprintf("node name %q must be a plain identifier", node.Name),
				Code:    ErrNodeNameInvalid,
			})
		}

		// E105: duplicate node name
		if seen[node.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate node name: %q", node.Name),
				Code:    ErrDuplicateNodeName,
			})
		}
		seen[node.Name] = true

		// E104: kind must be known
		if !ir.ValidKinds[node.Kind] {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid node kind %q", node.Kind),
				Code:    ErrInvalidKind,
			})
			continue // remaining checks are kind-specific
		}

		errs = append(errs, validateNodeShape(field, &node)...)

		// E107/E113: children must name defined nodes, each at most once
		childSeen := make(map[string]bool)
		for j, child := range node.Children {
			childField := fmt.Sprintf("%s.children[%d]", field, j)
			if !defined[child] {
				errs = append(errs, ValidationError{
					Field:   childField,
					Message: fmt.Sprintf("child references undefined node %q", child),
					Code:    ErrUndefinedChild,
				})
			}
			if childSeen[child] {
				errs = append(errs, ValidationError{
					Field:   childField,
					Message: fmt.Sprintf("node %q listed as child more than once", child),
					Code:    ErrDuplicateChildRef,
				})
			}
			childSeen[child] = true
		}

		// E106: params must be float-free all the way down
		errs = append(errs, validateParams(field+".params", node.Params)...)
	}

	return errs
}

// validateNodeShape enforces the per-kind structure rules.
func validateNodeShape(field string, node *ir.NodeSpec) []ValidationError {
	var errs []ValidationError

	switch node.Kind {
	case ir.KindAction, ir.KindCondition:
		// E108: leaves need an implementation
		if strings.TrimSpace(node.Leaf) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".leaf",
				Message: fmt.Sprintf("%s node requires a leaf implementation", node.Kind),
				Code:    ErrLeafMissing,
			})
		}
		// E110: leaves have no children
		if len(node.Children) > 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".children",
				Message: fmt.Sprintf("%s node cannot have children", node.Kind),
				Code:    ErrChildrenOnLeaf,
			})
		}
	case ir.KindSequence, ir.KindSelector, ir.KindInverter:
		// E109: composites do not execute leaf implementations
		if node.Leaf != "" {
			errs = append(errs, ValidationError{
				Field:   field + ".leaf",
				Message: fmt.Sprintf("%s node cannot name a leaf implementation", node.Kind),
				Code:    ErrLeafOnComposite,
			})
		}
		// E111: inverter wraps exactly one child
		if node.Kind == ir.KindInverter && len(node.Children) != 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".children",
				Message: fmt.Sprintf("inverter requires exactly one child, got %d", len(node.Children)),
				Code:    ErrInverterArity,
			})
		}
	}

	return errs
}

// validateParams rejects floats and nulls anywhere in a param tree. The
// compiler already refuses them, but specs can also arrive from JSON
// blueprints or be built in code.
func validateParams(field string, params map[string]any) []ValidationError {
	var errs []ValidationError
	for _, key := range ir.SortedKeys(params) {
		errs = append(errs, validateParamValue(fmt.Sprintf("%s.%s", field, key), params[key])...)
	}
	return errs
}

func validateParamValue(field string, v any) []ValidationError {
	switch val := v.(type) {
	case string, int, int64, bool:
		return nil
	case float32, float64:
		return []ValidationError{{
			Field:   field,
			Message: "float params are forbidden, use int instead",
			Code:    ErrFloatParamForbidden,
		}}
	case []any:
		var errs []ValidationError
		for i, elem := range val {
			errs = append(errs, validateParamValue(fmt.Sprintf("%s[%d]", field, i), elem)...)
		}
		return errs
	case map[string]any:
		return validateParams(field, val)
	case nil:
		return []ValidationError{{
			Field:   field,
			Message: "null params are forbidden",
			Code:    ErrFloatParamForbidden,
		}}
	default:
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("unsupported param type %T", v),
			Code:    ErrFloatParamForbidden,
		}}
	}
}
