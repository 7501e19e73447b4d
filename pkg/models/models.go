package models

import "time"

// Payload for POST /api/v1/sessions/{id}/events
type SessionEventPayload struct {
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"` // "MANIFEST_READY", "PIPELINE_STATUS"
	Timestamp time.Time `json:"timestamp"`

	// MANIFEST_READY
	ManifestPath string `json:"manifest_path,omitempty"`

	// PIPELINE_STATUS
	State       string  `json:"state,omitempty"` // "PLAYING", "PAUSED", ...
	PositionSec int64   `json:"position_seconds"`
	DurationSec int64   `json:"duration_seconds"`
	Speed       float64 `json:"speed_multiplier,omitempty"`
}

// Payload for POST /api/v1/sessions/{id}/finalize
type SessionResultPayload struct {
	Status   string `json:"status"` // "COMPLETED", "FAILED"
	ExitCode int    `json:"exit_code"`
	ErrorMsg string `json:"error_message,omitempty"`
	Metrics  struct {
		Attempts    int   `json:"attempts"`
		TotalTimeMS int64 `json:"total_time_ms"`
	} `json:"metrics"`
}

// Session result statuses.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)
