package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/ir"
)

func compileTree(t *testing.T, src, path string) (*ir.TreeSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileTree(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileTreeBasic(t *testing.T) {
	spec, err := compileTree(t, `
		tree: patrol: {
			root: "mission"

			node: mission: {
				kind: "sequence"
				children: ["battery_ok", "sweep"]
			}
			node: battery_ok: {
				kind: "condition"
				leaf: "flag"
				params: { key: "battery_ok" }
			}
			node: sweep: {
				kind: "action"
				leaf: "counter"
				params: { ticks: 3 }
			}
		}
	`, "tree.patrol")
	require.NoError(t, err)

	assert.Equal(t, "patrol", spec.Name)
	assert.Equal(t, "mission", spec.Root)
	require.Len(t, spec.Nodes, 3)

	mission := spec.Node("mission")
	require.NotNil(t, mission)
	assert.Equal(t, ir.KindSequence, mission.Kind)
	assert.Equal(t, []string{"battery_ok", "sweep"}, mission.Children)
	assert.Empty(t, mission.Leaf)

	sweep := spec.Node("sweep")
	require.NotNil(t, sweep)
	assert.Equal(t, "counter", sweep.Leaf)
	assert.Equal(t, map[string]any{"ticks": int64(3)}, sweep.Params, "ints decode as int64")
}

func TestCompileTreeMissingRoot(t *testing.T) {
	_, err := compileTree(t, `
		tree: broken: {
			node: a: { kind: "action", leaf: "succeed" }
		}
	`, "tree.broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTreeMissingNodes(t *testing.T) {
	_, err := compileTree(t, `
		tree: empty: {
			root: "a"
		}
	`, "tree.empty")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "node")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTreeMissingKind(t *testing.T) {
	_, err := compileTree(t, `
		tree: broken: {
			root: "a"
			node: a: { leaf: "succeed" }
		}
	`, "tree.broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileTreeRejectsFloatParam(t *testing.T) {
	_, err := compileTree(t, `
		tree: broken: {
			root: "a"
			node: a: {
				kind: "action"
				leaf: "counter"
				params: { speed: 2.5 }
			}
		}
	`, "tree.broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
	assert.Contains(t, err.Error(), "params.speed")
}

func TestCompileTreeNestedParams(t *testing.T) {
	spec, err := compileTree(t, `
		tree: rich: {
			root: "a"
			node: a: {
				kind: "action"
				leaf: "custom"
				params: {
					waypoints: ["dock", "gate"]
					limits: { speed: 2, retries: 1 }
					enabled: true
				}
			}
		}
	`, "tree.rich")
	require.NoError(t, err)

	params := spec.Node("a").Params
	assert.Equal(t, []any{"dock", "gate"}, params["waypoints"])
	assert.Equal(t, map[string]any{"speed": int64(2), "retries": int64(1)}, params["limits"])
	assert.Equal(t, true, params["enabled"])
}

func TestCompileTreeConflictingCUE(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		tree: broken: {
			root: "a"
			root: "b"
			node: a: { kind: "action", leaf: "succeed" }
		}
	`)

	_, err := CompileTree(v.LookupPath(cue.ParsePath("tree.broken")))
	require.Error(t, err, "conflicting CUE values must surface as a compile error")
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "root", Message: "root is required"}
	assert.Equal(t, "root: root is required", err.Error())
}
