package session

import "fmt"

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	// ExitRetry marks a failure that the supervisor resolves with a software
	// retry. It never reaches the process exit status.
	ExitRetry = 20
)

// Outcome is how one attempt ended. The set of implementations is closed:
// Success, RetryableFailure, FatalFailure and SeekRestartRequested.
type Outcome interface {
	isOutcome()
	fmt.Stringer
}

// Success means the engine reached end-of-stream.
type Success struct{}

// RetryableFailure may be resolved by rebuilding with software decoders.
type RetryableFailure struct {
	Err error
}

// FatalFailure ends the session.
type FatalFailure struct {
	Err error
}

// SeekRestartRequested asks for a fresh attempt starting at Seconds.
type SeekRestartRequested struct {
	Seconds int64
}

func (Success) isOutcome()              {}
func (RetryableFailure) isOutcome()     {}
func (FatalFailure) isOutcome()         {}
func (SeekRestartRequested) isOutcome() {}

func (Success) String() string                { return "success" }
func (o RetryableFailure) String() string     { return fmt.Sprintf("retryable failure: %v", o.Err) }
func (o FatalFailure) String() string         { return fmt.Sprintf("fatal failure: %v", o.Err) }
func (o SeekRestartRequested) String() string { return fmt.Sprintf("seek restart to %ds", o.Seconds) }

// Label is the short outcome name used in logs and metrics.
func Label(o Outcome) string {
	switch o.(type) {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case FatalFailure:
		return "fatal"
	case SeekRestartRequested:
		return "seek_restart"
	default:
		return "unknown"
	}
}

// ExitCode maps an outcome to the process exit status.
func ExitCode(o Outcome) int {
	switch o.(type) {
	case Success:
		return ExitSuccess
	case RetryableFailure:
		return ExitRetry
	default:
		return ExitFailure
	}
}

// Err returns the failure cause, or nil for non-failures.
func Err(o Outcome) error {
	switch o := o.(type) {
	case RetryableFailure:
		return o.Err
	case FatalFailure:
		return o.Err
	default:
		return nil
	}
}
