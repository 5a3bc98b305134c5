package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/arbor/internal/compiler"
	"github.com/roach88/arbor/internal/engine"
	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/store"
)

// defaultRunToken is used when a scenario does not pin its own run token.
// A constant keeps golden snapshots stable across runs.
const defaultRunToken = "test-run-default"

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fresh logical clock and a fixed run token for determinism.
//
// Execution flow:
//  1. Create fresh in-memory trace store
//  2. Compile the trees directory and build the named tree
//  3. Seed the blackboard
//  4. Tick once per step, applying the step's set map before the tick
//  5. Check step expectations, trace laws, and scenario assertions
//
// The returned error covers execution problems (broken trees, store
// failures); assertion failures land in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	specs, err := compiler.LoadTreeDir(scenario.Trees)
	if err != nil {
		return nil, fmt.Errorf("failed to load trees: %w", err)
	}
	spec, ok := specs[scenario.Tree]
	if !ok {
		return nil, fmt.Errorf("tree %q not found in %s (have %v)",
			scenario.Tree, scenario.Trees, treeNames(specs))
	}

	tree, err := engine.Build(spec, engine.DefaultRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to build tree %q: %w", scenario.Tree, err)
	}

	seed, err := normalizeValues(scenario.Blackboard)
	if err != nil {
		return nil, fmt.Errorf("blackboard: %w", err)
	}
	tree.SeedBlackboard(seed)

	// Normalize every step's writes up front so a bad value fails the
	// scenario before any tick runs.
	sets := make([]map[string]any, len(scenario.Steps))
	for i, step := range scenario.Steps {
		sets[i], err = normalizeValues(step.Set)
		if err != nil {
			return nil, fmt.Errorf("steps[%d].set: %w", i, err)
		}
	}

	token := scenario.RunToken
	if token == "" {
		token = defaultRunToken
	}

	runner := engine.NewRunner(st,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithClock(engine.NewClock()),
		engine.WithTokens(engine.NewFixedGenerator(token)),
		engine.WithMaxTicks(len(scenario.Steps)),
		engine.WithRestart(true),
		engine.WithBeforeTick(func(tick int) {
			for key, value := range sets[tick-1] {
				tree.Blackboard.Set(key, value)
			}
		}),
	)

	ctx := context.Background()
	run, err := runner.Run(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	events, err := st.ReadRunEvents(ctx, run.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	result := NewResult()
	result.RunToken = run.Token
	result.TreeName = run.TreeName
	result.FinalStatus = run.Status.String()
	for _, status := range run.Statuses {
		result.Statuses = append(result.Statuses, status.String())
	}
	result.Trace = events

	// Per-step expectations.
	for i, step := range scenario.Steps {
		if i >= len(result.Statuses) {
			result.AddError((&AssertionError{
				Type:     "step_expect",
				Expected: fmt.Sprintf("step %d to tick with status %s", i+1, step.Expect),
				Actual:   fmt.Sprintf("run stopped after %d tick(s)", len(result.Statuses)),
				Trace:    events,
			}).Error())
			continue
		}
		if result.Statuses[i] != step.Expect {
			result.AddError((&AssertionError{
				Type:     "step_expect",
				Expected: fmt.Sprintf("step %d root status %s", i+1, step.Expect),
				Actual:   result.Statuses[i],
				Trace:    events,
			}).Error())
		}
	}

	// Structural laws hold for every trace, asserted or not.
	for _, msg := range VerifyTraceLaws(events, len(scenario.Steps)) {
		result.AddError(msg)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// treeNames returns the sorted tree names for error messages.
func treeNames(specs map[string]*ir.TreeSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeValues converts a YAML-parsed map into the plain value types the
// blackboard and canonical JSON accept.
func normalizeValues(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for key, val := range values {
		norm, err := normalizeValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = norm
	}
	return out, nil
}

// normalizeValue converts a single YAML-parsed value. Integers come out as
// int64 to match what the store reads back; floats and nulls are rejected
// early with a clear message rather than failing later during canonical
// JSON serialization.
func normalizeValue(val any) (any, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are forbidden (canonical JSON does not support null)")
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return nil, fmt.Errorf("floats are forbidden in blackboard values: %v", v)
	case []any:
		arr := make([]any, len(v))
		for i, elem := range v {
			norm, err := normalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = norm
		}
		return arr, nil
	case map[string]any:
		return normalizeValues(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
