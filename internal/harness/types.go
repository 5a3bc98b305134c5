package harness

import "github.com/roach88/arbor/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True when every step expectation, trace law, and assertion held.
	Pass bool `json:"pass"`

	// RunToken identifies the recorded run in the scenario's store.
	RunToken string `json:"run_token"`

	// TreeName is the executed tree.
	TreeName string `json:"tree_name"`

	// FinalStatus is the root status after the last tick.
	FinalStatus string `json:"final_status"`

	// Statuses holds the root status per tick, one entry per step.
	Statuses []string `json:"statuses"`

	// Trace contains the full recorded event sequence in seq order.
	// Used for assertions, law checks, and golden comparison.
	Trace []ir.TickEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Statuses: []string{},
		Trace:    []ir.TickEvent{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
