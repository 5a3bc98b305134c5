package ir

// NOTE: These are store-layer row types, not part of the canonical blueprint.

// TreeRow is a stored tree definition, keyed by canonical hash.
//
// Definition holds the RFC 8785 canonical JSON blueprint so a run can be
// replayed later against the exact tree it executed, even if the CUE source
// has since changed.
type TreeRow struct {
	Hash       string `json:"hash"`       // Content-addressed (TreeHash)
	Name       string `json:"name"`       // Tree name at pin time
	Definition string `json:"definition"` // Canonical JSON blueprint
}

// RunRow is a stored run record.
//
// FinalStatus is empty while the run is in progress and holds the terminal
// root status ("SUCCESS", "FAILURE", "ERROR") once FinishRun has been called.
type RunRow struct {
	Token             string `json:"token"`              // Generated per run (UUIDv7)
	TreeName          string `json:"tree_name"`
	TreeHash          string `json:"tree_hash"`          // FK into trees
	InitialBlackboard string `json:"initial_blackboard"` // Canonical JSON
	StartedSeq        int64  `json:"started_seq"`        // Logical clock at run start
	FinalStatus       string `json:"final_status"`       // Empty until finished
	TickCount         int64  `json:"tick_count"`
	EngineVersion     string `json:"engine_version"`
}
