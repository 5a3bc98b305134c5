package bt

import "fmt"

// Status is the result of ticking a node.
//
// The zero value is StatusIdle, a distinct non-terminal sentinel meaning the
// node has never been ticked (or was just initialized). It is not a valid
// return value for leaf callbacks; leaves return one of the four run
// statuses.
type Status int

const (
	// StatusIdle is the initial status set by Init. It is neither Running
	// nor terminal, so the first tick always starts a fresh episode.
	StatusIdle Status = iota

	// StatusRunning means the node needs more ticks to finish.
	StatusRunning

	// StatusSuccess means the node's goal was achieved.
	StatusSuccess

	// StatusFailure means the node's goal was not achieved. Failure is an
	// ordinary outcome, not a fault; a Selector responds by trying its
	// next child.
	StatusFailure

	// StatusError means the node or subtree is broken (nil reference,
	// malformed structure, missing callback) or a leaf reported a fault.
	// Errors stop both composite types immediately.
	StatusError
)

// Terminal reports whether s ends an episode.
// Success, Failure, and Error are terminal; Idle and Running are not.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusError:
		return true
	}
	return false
}

// String returns the canonical upper-case name used in traces, scenario
// files, and CLI output.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusRunning:
		return "RUNNING"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus converts a canonical status name back to a Status.
// It accepts exactly the strings produced by String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "IDLE":
		return StatusIdle, nil
	case "RUNNING":
		return StatusRunning, nil
	case "SUCCESS":
		return StatusSuccess, nil
	case "FAILURE":
		return StatusFailure, nil
	case "ERROR":
		return StatusError, nil
	default:
		return StatusIdle, fmt.Errorf("unknown status %q", s)
	}
}
