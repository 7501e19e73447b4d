// Package protocol implements the line-oriented text protocol spoken with the
// parent process: playback commands arrive on stdin, session events leave on
// stdout.
package protocol

import "fmt"

// Command is a playback command sent by the parent process. The set of
// implementations is closed: Play, Pause and Seek.
type Command interface {
	isCommand()
	fmt.Stringer
}

// Play requests the pipeline to run.
type Play struct{}

// Pause requests the pipeline to hold its position.
type Pause struct{}

// Seek requests playback to restart at Seconds.
type Seek struct {
	Seconds int64
}

func (Play) isCommand()  {}
func (Pause) isCommand() {}
func (Seek) isCommand()  {}

func (Play) String() string   { return "STATE PLAYING" }
func (Pause) String() string  { return "STATE PAUSED" }
func (s Seek) String() string { return fmt.Sprintf("SEEK %d", s.Seconds) }
