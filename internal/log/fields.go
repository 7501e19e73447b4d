package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldSessionID = "session_id"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Attempt fields
	FieldAttempt = "attempt"
	FieldMode    = "mode"
	FieldOutcome = "outcome"

	// Engine fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldSource   = "source"
	FieldCategory = "category"

	// Playback fields
	FieldPosition = "position"
	FieldDuration = "duration"
	FieldSpeed    = "speed"
	FieldSeek     = "seek_seconds"

	// Path fields
	FieldPath = "path"
	FieldURI  = "uri"
)
