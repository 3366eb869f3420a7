package ir

// NOTE: These are store-layer types, not part of the snapshot stream.

// RunRecord is the stored header of one engine run.
type RunRecord struct {
	ID             string  `json:"id"`
	Program        string  `json:"program"`
	ProgramHash    string  `json:"program_hash"`
	DrainPolicy    string  `json:"drain_policy"`
	Speed          float64 `json:"speed"`
	OperationCount int     `json:"operation_count"`
	Completed      bool    `json:"completed"`
	FinalStep      int     `json:"final_step"`
	EngineVersion  string  `json:"engine_version"`
	TraceVersion   string  `json:"trace_version"`
}

// LogEntry is one completed label of a run, with the step it completed at.
type LogEntry struct {
	RunID    string `json:"run_id"`
	Position int    `json:"position"` // 0-based index in the log
	Label    string `json:"label"`
	Step     int    `json:"step"`
}
