package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Keys attached to the context logger for the lifetime of a run or file.
const (
	FieldRunID     = "run_id"
	FieldComponent = "component"
	FieldBackend   = "backend"
	FieldFile      = "file"
	FieldMode      = "mode"
)

// Keys written by Step when it finishes.
const (
	FieldStep       = "step"
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldOutcome    = "outcome"
)
