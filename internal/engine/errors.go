package engine

import (
	"errors"
	"fmt"
)

// RunError represents an error detected while building or driving a tree.
//
// Build-time errors include:
//   - Unknown leaf: a node names a leaf implementation the registry lacks
//   - Invalid params: a leaf factory rejected its params
//   - Malformed tree: validation or graph checking failed
//
// Run-time errors include:
//   - Not converged: the root never settled within the tick budget
//   - Aborted: the driving context was cancelled mid-run
//   - Trace failed: the run finished but trace writes were lost
//
// RunError includes structured fields for diagnostics and recovery.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Tree is the tree name (empty when no tree is in scope).
	Tree string

	// RunToken identifies the affected run (empty for build-time errors).
	RunToken string

	// Details contains additional context.
	Details map[string]string
}

// RunErrorCode categorizes run errors. The values match the snake_case
// names trace rows and CLI JSON output use.
type RunErrorCode string

const (
	// ErrCodeLeafNotFound indicates a referenced leaf implementation
	// is not registered.
	ErrCodeLeafNotFound RunErrorCode = "leaf_not_found"

	// ErrCodeInvalidParams indicates a leaf factory rejected its params.
	ErrCodeInvalidParams RunErrorCode = "invalid_params"

	// ErrCodeMalformedTree indicates validation or graph checking failed.
	ErrCodeMalformedTree RunErrorCode = "malformed_tree"

	// ErrCodeNotConverged indicates the root never reached a terminal
	// status within the tick budget.
	ErrCodeNotConverged RunErrorCode = "not_converged"

	// ErrCodeAborted indicates the driving context was cancelled.
	ErrCodeAborted RunErrorCode = "aborted"

	// ErrCodeTraceFailed indicates the run finished but one or more trace
	// writes failed.
	ErrCodeTraceFailed RunErrorCode = "trace_failed"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Tree != "" && e.RunToken != "" {
		return fmt.Sprintf("%s: %s (tree=%s, run=%s)", e.Code, e.Message, e.Tree, e.RunToken)
	}
	if e.Tree != "" {
		return fmt.Sprintf("%s: %s (tree=%s)", e.Code, e.Message, e.Tree)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotConverged returns true if the error is a tick budget error.
// Uses errors.As to handle wrapped errors.
func IsNotConverged(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNotConverged
	}
	return false
}

// IsAborted returns true if the error is a context cancellation error.
// Uses errors.As to handle wrapped errors.
func IsAborted(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeAborted
	}
	return false
}

// NewLeafNotFoundError creates a RunError for an unregistered leaf name.
func NewLeafNotFoundError(tree, node, leaf string) *RunError {
	return &RunError{
		Code:    ErrCodeLeafNotFound,
		Message: fmt.Sprintf("node %q references unregistered leaf %q", node, leaf),
		Tree:    tree,
		Details: map[string]string{
			"node": node,
			"leaf": leaf,
		},
	}
}

// NewInvalidParamsError creates a RunError for params a leaf factory rejected.
func NewInvalidParamsError(tree, node, leaf string, cause error) *RunError {
	return &RunError{
		Code:    ErrCodeInvalidParams,
		Message: fmt.Sprintf("leaf %q rejected params for node %q: %v", leaf, node, cause),
		Tree:    tree,
		Details: map[string]string{
			"node": node,
			"leaf": leaf,
		},
	}
}

// NewMalformedTreeError creates a RunError wrapping validation failures.
func NewMalformedTreeError(tree string, count int, first error) *RunError {
	return &RunError{
		Code:    ErrCodeMalformedTree,
		Message: fmt.Sprintf("%d validation error(s), first: %v", count, first),
		Tree:    tree,
		Details: map[string]string{
			"error_count": fmt.Sprintf("%d", count),
		},
	}
}

// NewNotConvergedError creates a RunError for an exhausted tick budget.
func NewNotConvergedError(tree, token string, ticks int) *RunError {
	return &RunError{
		Code:     ErrCodeNotConverged,
		Message:  fmt.Sprintf("root still running after %d tick(s)", ticks),
		Tree:     tree,
		RunToken: token,
		Details: map[string]string{
			"ticks": fmt.Sprintf("%d", ticks),
		},
	}
}

// NewAbortedError creates a RunError for a cancelled run.
func NewAbortedError(tree, token string, cause error) *RunError {
	return &RunError{
		Code:     ErrCodeAborted,
		Message:  fmt.Sprintf("run cancelled: %v", cause),
		Tree:     tree,
		RunToken: token,
	}
}

// NewTraceFailedError creates a RunError for lost trace writes.
func NewTraceFailedError(tree, token string, failures int, first error) *RunError {
	return &RunError{
		Code:     ErrCodeTraceFailed,
		Message:  fmt.Sprintf("%d trace write(s) failed, first: %v", failures, first),
		Tree:     tree,
		RunToken: token,
		Details: map[string]string{
			"failures": fmt.Sprintf("%d", failures),
		},
	}
}
