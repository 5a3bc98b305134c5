package ir

// Version constants for the blueprint schema and engine.
const (
	// IRVersion is the compiled blueprint schema version.
	IRVersion = "1"

	// EngineVersion is the arbor engine version, recorded on every run.
	EngineVersion = "0.1.0"
)
