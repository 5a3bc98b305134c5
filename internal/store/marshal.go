package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/arbor/internal/ir"
)

// marshalTreeDefinition converts a tree spec to canonical JSON TEXT for
// storage. The canonical form is what TreeHash covers, so definition bytes
// and hash always agree.
func marshalTreeDefinition(spec *ir.TreeSpec) (string, error) {
	data, err := ir.MarshalCanonical(spec.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("marshal tree definition: %w", err)
	}
	return string(data), nil
}

// unmarshalTreeDefinition parses stored canonical JSON back into a tree spec.
//
// Uses json.Number during decode so large integer params survive the round
// trip; a float64 pass would corrupt values above 2^53 and break the hash
// on replay. The canonical form keys nodes by name, so the rebuilt Nodes
// slice is in sorted-name order, not declaration order.
func unmarshalTreeDefinition(data string) (*ir.TreeSpec, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal tree definition: %w", err)
	}

	name, ok := raw["name"].(string)
	if !ok {
		return nil, fmt.Errorf("unmarshal tree definition: missing name")
	}
	root, ok := raw["root"].(string)
	if !ok {
		return nil, fmt.Errorf("unmarshal tree definition: missing root")
	}
	rawNodes, ok := raw["nodes"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal tree definition: missing nodes")
	}

	spec := &ir.TreeSpec{
		Name:  name,
		Root:  root,
		Nodes: make([]ir.NodeSpec, 0, len(rawNodes)),
	}

	for _, nodeName := range ir.SortedKeys(rawNodes) {
		rawNode, ok := rawNodes[nodeName].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unmarshal tree definition: node %q is not an object", nodeName)
		}
		node, err := unmarshalNode(nodeName, rawNode)
		if err != nil {
			return nil, err
		}
		spec.Nodes = append(spec.Nodes, node)
	}

	return spec, nil
}

// unmarshalNode rebuilds a single node spec from its canonical object.
func unmarshalNode(name string, raw map[string]any) (ir.NodeSpec, error) {
	node := ir.NodeSpec{Name: name}

	kind, ok := raw["kind"].(string)
	if !ok {
		return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q missing kind", name)
	}
	node.Kind = kind

	if rawChildren, present := raw["children"]; present {
		children, ok := rawChildren.([]any)
		if !ok {
			return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q children is not an array", name)
		}
		node.Children = make([]string, 0, len(children))
		for _, c := range children {
			child, ok := c.(string)
			if !ok {
				return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q has non-string child", name)
			}
			node.Children = append(node.Children, child)
		}
	}

	if rawLeaf, present := raw["leaf"]; present {
		leaf, ok := rawLeaf.(string)
		if !ok {
			return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q leaf is not a string", name)
		}
		node.Leaf = leaf
	}

	if rawParams, present := raw["params"]; present {
		params, ok := rawParams.(map[string]any)
		if !ok {
			return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q params is not an object", name)
		}
		normalized, err := normalizeJSONValue(params)
		if err != nil {
			return ir.NodeSpec{}, fmt.Errorf("unmarshal tree definition: node %q: %w", name, err)
		}
		node.Params = normalized.(map[string]any)
	}

	return node, nil
}

// unmarshalBlackboard parses a stored canonical blackboard snapshot.
// Integers come back as int64, matching what the compiler produced.
func unmarshalBlackboard(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal blackboard: %w", err)
	}

	normalized, err := normalizeJSONValue(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal blackboard: %w", err)
	}
	return normalized.(map[string]any), nil
}

// normalizeJSONValue rewrites a decoded JSON value into the canonical value
// set: json.Number becomes int64, and anything canonical JSON forbids
// (floats, nulls) is rejected rather than silently carried.
func normalizeJSONValue(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q in stored JSON", val)
		}
		return n, nil
	case string, bool:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			norm, err := normalizeJSONValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			norm, err := normalizeJSONValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("null in stored JSON")
	default:
		return nil, fmt.Errorf("unsupported type %T in stored JSON", v)
	}
}
