package ir

// Version constants for the data model and builder.
const (
	// SchemaVersion is the version of the edge/record data model.
	SchemaVersion = "1"

	// EngineVersion is the recalc cascade builder version.
	EngineVersion = "0.1.0"
)
