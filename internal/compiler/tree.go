package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/arbor/internal/ir"
)

// CompileTree parses a CUE value into a TreeSpec.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the tree struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`tree: patrol: { ... }`)
//	spec, err := CompileTree(v.LookupPath(cue.ParsePath("tree.patrol")))
func CompileTree(v cue.Value) (*ir.TreeSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TreeSpec{}

	// Tree name comes from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	// Parse root (required)
	rootVal := v.LookupPath(cue.ParsePath("root"))
	if !rootVal.Exists() {
		return nil, &CompileError{
			Field:   "root",
			Message: "root is required",
			Pos:     v.Pos(),
		}
	}
	root, err := rootVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Root = root

	// Parse nodes (required, at least one)
	spec.Nodes, err = parseNodes(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Nodes) == 0 {
		return nil, &CompileError{
			Field:   "node",
			Message: "at least one node is required",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// parseNodes extracts node definitions from the tree struct.
func parseNodes(v cue.Value) ([]ir.NodeSpec, error) {
	var nodes []ir.NodeSpec

	nodeVal := v.LookupPath(cue.ParsePath("node"))
	if !nodeVal.Exists() {
		return nodes, nil
	}

	iter, err := nodeVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		node, err := parseNode(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// parseNode extracts a single node definition.
func parseNode(name string, v cue.Value) (ir.NodeSpec, error) {
	node := ir.NodeSpec{Name: name}

	// Parse kind (required)
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return node, &CompileError{
			Field:   fmt.Sprintf("node.%s.kind", name),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return node, formatCUEError(err)
	}
	node.Kind = kind

	// Parse children (optional, list of node names)
	childrenVal := v.LookupPath(cue.ParsePath("children"))
	if childrenVal.Exists() {
		childIter, err := childrenVal.List()
		if err != nil {
			return node, formatCUEError(err)
		}
		for childIter.Next() {
			child, err := childIter.Value().String()
			if err != nil {
				return node, formatCUEError(err)
			}
			node.Children = append(node.Children, child)
		}
	}

	// Parse leaf (optional, names a registered leaf implementation)
	leafVal := v.LookupPath(cue.ParsePath("leaf"))
	if leafVal.Exists() {
		leaf, err := leafVal.String()
		if err != nil {
			return node, formatCUEError(err)
		}
		node.Leaf = leaf
	}

	// Parse params (optional, opaque leaf configuration)
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		params, err := parseParams(name, paramsVal)
		if err != nil {
			return node, err
		}
		node.Params = params
	}

	return node, nil
}

// parseParams converts a CUE struct into plain parameter values.
func parseParams(nodeName string, v cue.Value) (map[string]any, error) {
	params := make(map[string]any)

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		key := iter.Label()
		val, err := extractParamValue(iter.Value())
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("node.%s.params.%s", nodeName, key),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		params[key] = val
	}

	return params, nil
}

// extractParamValue converts a concrete CUE value into the plain Go types
// canonical JSON accepts. Floats are forbidden; ints come out as int64.
func extractParamValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.BoolKind:
		return v.Bool()
	case cue.ListKind:
		var arr []any
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			elem, err := extractParamValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = []any{}
		}
		return arr, nil
	case cue.StructKind:
		obj := make(map[string]any)
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			elem, err := extractParamValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, fmt.Errorf("float params are forbidden, use int instead")
	case cue.NullKind:
		return nil, fmt.Errorf("null params are forbidden")
	default:
		return nil, fmt.Errorf("unsupported param kind: %v", v.Kind())
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
