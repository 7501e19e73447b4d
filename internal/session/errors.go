package session

import "errors"

// Attempt failure taxonomy. Every failure that ends an attempt wraps exactly
// one of these.
var (
	ErrConfiguration     = errors.New("pipeline configuration rejected")
	ErrEngineTransition  = errors.New("engine state transition rejected")
	ErrBrokenManifest    = errors.New("manifest is structurally broken")
	ErrEngineRuntime     = errors.New("engine reported an error")
	ErrTimeout           = errors.New("timed out waiting for play command")
	ErrUnexpectedCommand = errors.New("unexpected command")
)
