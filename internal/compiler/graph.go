package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/arbor/internal/ir"
)

// CheckGraph performs static shape analysis on a compiled tree.
//
// Validate covers everything checkable one node at a time; CheckGraph covers
// the properties that only hold for the structure as a whole:
//
//   - E114: no node may be its own descendant (the build would recurse
//     forever and ticking would never terminate)
//   - E115: every node has at most one parent (node state - status, cursor,
//     hooks - is per node, so a shared subtree would be resumed by two
//     parents at once)
//   - E116: every defined node is reachable from the root
//
// The algorithm:
//  1. Build the name -> children adjacency from the spec, in declaration
//     order so reported errors are deterministic
//  2. Find strongly connected components with Tarjan's algorithm; any SCC
//     larger than one node, or a self-loop, is a cycle
//  3. Walk from the root and report what was never visited
//
// References to undefined nodes are skipped here; Validate already reports
// them as E107.
func CheckGraph(spec *ir.TreeSpec) []ValidationError {
	var errs []ValidationError

	defined := make(map[string]bool, len(spec.Nodes))
	for _, node := range spec.Nodes {
		defined[node.Name] = true
	}

	// name -> children, declaration order preserved
	graph := make(map[string][]string, len(spec.Nodes))
	order := make([]string, 0, len(spec.Nodes))
	for _, node := range spec.Nodes {
		order = append(order, node.Name)
		var edges []string
		for _, child := range node.Children {
			if defined[child] {
				edges = append(edges, child)
			}
		}
		graph[node.Name] = edges
	}

	// E115: at most one parent per node
	parents := make(map[string][]string)
	for _, node := range spec.Nodes {
		counted := make(map[string]bool)
		for _, child := range node.Children {
			if !defined[child] || counted[child] {
				continue
			}
			counted[child] = true
			parents[child] = append(parents[child], node.Name)
		}
	}
	for _, name := range order {
		if p := parents[name]; len(p) > 1 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("node.%s", name),
				Message: fmt.Sprintf("node %q has multiple parents: %s", name, strings.Join(p, ", ")),
				Code:    ErrMultipleParent,
			})
		}
	}

	// E114: cycles
	for _, scc := range tarjanSCC(order, graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			errs = append(errs, cycleError(scc, graph))
		}
	}

	// E116: reachability from the root
	if defined[spec.Root] {
		visited := make(map[string]bool)
		var walk func(string)
		walk = func(name string) {
			if visited[name] {
				return
			}
			visited[name] = true
			for _, child := range graph[name] {
				walk(child)
			}
		}
		walk(spec.Root)

		for _, name := range order {
			if !visited[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("node.%s", name),
					Message: fmt.Sprintf("node %q is not reachable from root %q", name, spec.Root),
					Code:    ErrUnreachable,
				})
			}
		}
	}

	return errs
}

// hasSelfLoop checks if a node lists itself as a child.
func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in the given order so the output is deterministic.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(order []string, graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root of an SCC: pop the stack down to v
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleError converts an SCC into a ValidationError whose message shows a
// cycle traversal. Self-loops read "a → a".
func cycleError(scc []string, graph map[string][]string) ValidationError {
	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(scc, graph)
	}

	return ValidationError{
		Field:   fmt.Sprintf("node.%s", path[0]),
		Message: fmt.Sprintf("cycle detected: %s", strings.Join(path, " → ")),
		Code:    ErrCycleDetected,
	}
}

// reconstructCyclePath builds a representative cycle path through an SCC:
// start at the first member, follow edges inside the SCC until the start
// node comes back around.
func reconstructCyclePath(scc []string, graph map[string][]string) []string {
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
