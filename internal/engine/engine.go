// Package engine defines the boundary to the external media pipeline engine.
// The session owns exactly one Handle per attempt; everything behind the
// Handle (decoding, encoding, HLS muxing) is opaque.
package engine

import (
	"time"
)

// State is the engine lifecycle state.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// Engine constructs pipelines from a textual description.
type Engine interface {
	Build(description string) (Handle, error)
}

// Handle is one constructed pipeline. It is not safe for concurrent use.
type Handle interface {
	SetState(State) error
	State() State
	// QueryPosition and QueryDuration report false while the value is unknown.
	QueryPosition() (time.Duration, bool)
	QueryDuration() (time.Duration, bool)
	Seek(position time.Duration) bool
	// PollEvent waits at most timeout for the next bus event. It returns nil
	// when nothing arrived.
	PollEvent(timeout time.Duration) BusEvent
	// Destroy releases the pipeline. The handle must not be used afterwards.
	Destroy()
}
