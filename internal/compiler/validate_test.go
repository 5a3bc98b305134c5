package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arbor/internal/ir"
)

// validSpec returns a well-formed spec the mutation tests start from.
func validSpec() *ir.TreeSpec {
	return &ir.TreeSpec{
		Name: "patrol",
		Root: "mission",
		Nodes: []ir.NodeSpec{
			{Name: "mission", Kind: ir.KindSequence, Children: []string{"battery_ok", "not_blocked", "sweep"}},
			{Name: "battery_ok", Kind: ir.KindCondition, Leaf: "flag", Params: map[string]any{"key": "battery_ok"}},
			{Name: "not_blocked", Kind: ir.KindInverter, Children: []string{"blocked"}},
			{Name: "blocked", Kind: ir.KindCondition, Leaf: "flag", Params: map[string]any{"key": "blocked"}},
			{Name: "sweep", Kind: ir.KindAction, Leaf: "counter", Params: map[string]any{"ticks": int64(3)}},
		},
	}
}

func codesOf(errs []ValidationError) []string {
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_ValidSpec(t *testing.T) {
	assert.Empty(t, Validate(validSpec()))
}

func TestValidate_AcceptsValueAndPointer(t *testing.T) {
	spec := validSpec()
	assert.Empty(t, Validate(spec))
	assert.Empty(t, Validate(*spec))
}

func TestValidate_UnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidate_TreeNameInvalid(t *testing.T) {
	spec := validSpec()
	spec.Name = "patrol tree"

	assert.Contains(t, codesOf(Validate(spec)), ErrTreeNameInvalid)
}

func TestValidate_RootMissing(t *testing.T) {
	spec := validSpec()
	spec.Root = "  "

	assert.Contains(t, codesOf(Validate(spec)), ErrRootMissing)
}

func TestValidate_RootUndefined(t *testing.T) {
	spec := validSpec()
	spec.Root = "ghost"

	errs := Validate(spec)
	require.Contains(t, codesOf(errs), ErrRootUndefined)
	assert.Contains(t, errs[0].Message, "ghost")
}

func TestValidate_InvalidKind(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Kind = "parallel"

	assert.Contains(t, codesOf(Validate(spec)), ErrInvalidKind)
}

func TestValidate_DuplicateNodeName(t *testing.T) {
	spec := validSpec()
	spec.Nodes = append(spec.Nodes, ir.NodeSpec{Name: "sweep", Kind: ir.KindAction, Leaf: "succeed"})

	assert.Contains(t, codesOf(Validate(spec)), ErrDuplicateNodeName)
}

func TestValidate_FloatParams(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Params["speed"] = 2.5

	assert.Contains(t, codesOf(Validate(spec)), ErrFloatParamForbidden)
}

func TestValidate_FloatParamsNested(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Params["limits"] = map[string]any{"velocity": []any{1, 2.5}}

	errs := Validate(spec)
	require.Contains(t, codesOf(errs), ErrFloatParamForbidden)

	// The offending path is named precisely.
	var found bool
	for _, e := range errs {
		if e.Code == ErrFloatParamForbidden {
			assert.Contains(t, e.Field, "params.limits.velocity[1]")
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_NullParams(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Params["target"] = nil

	assert.Contains(t, codesOf(Validate(spec)), ErrFloatParamForbidden)
}

func TestValidate_UndefinedChild(t *testing.T) {
	spec := validSpec()
	spec.Nodes[0].Children = []string{"battery_ok", "ghost", "sweep"}

	assert.Contains(t, codesOf(Validate(spec)), ErrUndefinedChild)
}

func TestValidate_LeafMissingOnAction(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Leaf = ""

	assert.Contains(t, codesOf(Validate(spec)), ErrLeafMissing)
}

func TestValidate_LeafOnComposite(t *testing.T) {
	spec := validSpec()
	spec.Nodes[0].Leaf = "succeed"

	assert.Contains(t, codesOf(Validate(spec)), ErrLeafOnComposite)
}

func TestValidate_ChildrenOnLeaf(t *testing.T) {
	spec := validSpec()
	spec.Nodes[4].Children = []string{"battery_ok"}

	assert.Contains(t, codesOf(Validate(spec)), ErrChildrenOnLeaf)
}

func TestValidate_InverterArity(t *testing.T) {
	zero := validSpec()
	zero.Nodes[2].Children = nil
	assert.Contains(t, codesOf(Validate(zero)), ErrInverterArity)

	two := validSpec()
	two.Nodes[2].Children = []string{"blocked", "sweep"}
	assert.Contains(t, codesOf(Validate(two)), ErrInverterArity)
}

func TestValidate_NodeNameInvalid(t *testing.T) {
	spec := validSpec()
	spec.Nodes[3].Name = "is-blocked"
	spec.Nodes[2].Children = []string{"is-blocked"}

	assert.Contains(t, codesOf(Validate(spec)), ErrNodeNameInvalid)
}

func TestValidate_DuplicateChildRef(t *testing.T) {
	spec := validSpec()
	spec.Nodes[0].Children = []string{"battery_ok", "sweep", "sweep"}

	assert.Contains(t, codesOf(Validate(spec)), ErrDuplicateChildRef)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	// Validation must not stop at the first problem.
	spec := &ir.TreeSpec{
		Name: "bad tree",
		Root: "ghost",
		Nodes: []ir.NodeSpec{
			{Name: "a", Kind: "warp"},
			{Name: "b", Kind: ir.KindAction, Children: []string{"a"}},
		},
	}

	codes := codesOf(Validate(spec))
	assert.Contains(t, codes, ErrTreeNameInvalid)
	assert.Contains(t, codes, ErrRootUndefined)
	assert.Contains(t, codes, ErrInvalidKind)
	assert.Contains(t, codes, ErrLeafMissing)
	assert.Contains(t, codes, ErrChildrenOnLeaf)
}

// =============================================================================
// ValidationError Tests
// =============================================================================

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "node.sweep.kind", Message: "invalid node kind", Code: ErrInvalidKind}
	assert.Equal(t, "[E104] node.sweep.kind: invalid node kind", err.Error())

	withLine := ValidationError{Field: "root", Message: "root is required", Code: ErrRootMissing, Line: 7}
	assert.Equal(t, "[E102] line 7: root: root is required", withLine.Error())
}
