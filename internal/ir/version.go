package ir

// Version constants for persisted traces and the engine.
const (
	// TraceVersion is the version of the persisted snapshot format.
	TraceVersion = "1"

	// EngineVersion is the loopviz engine version.
	EngineVersion = "0.1.0"
)
