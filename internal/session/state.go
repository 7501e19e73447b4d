package session

import (
	"time"

	"transcode-session/internal/engine"
	"transcode-session/internal/throughput"
)

// State is the per-attempt mutable session state. The controller starts
// every attempt from the zero value.
type State struct {
	Lifecycle engine.State

	PendingSeek    int64
	HasPendingSeek bool

	Duration      time.Duration
	ManifestValid bool
	ManifestReady bool

	LastStatus time.Time
	Estimator  throughput.Estimator
}

// SetPendingSeek records a seek target to apply once the duration is known.
func (s *State) SetPendingSeek(seconds int64) {
	s.PendingSeek = seconds
	s.HasPendingSeek = true
}

// ClearPendingSeek drops the pending seek.
func (s *State) ClearPendingSeek() {
	s.PendingSeek = 0
	s.HasPendingSeek = false
}
