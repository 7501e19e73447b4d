package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	xlog "transcode-session/internal/log"
)

// ErrProtocol marks a malformed inbound command.
var ErrProtocol = errors.New("protocol error")

// ParseError describes a line that could not be turned into a Command.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("protocol: %s: %q", e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error { return ErrProtocol }

// ParseLine converts one inbound line into a Command. Blank lines yield a nil
// Command and no error.
func ParseLine(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	switch fields[0] {
	case "STATE":
		if len(fields) != 2 {
			return nil, &ParseError{Line: line, Reason: "STATE takes exactly one argument"}
		}
		switch fields[1] {
		case "PLAYING":
			return Play{}, nil
		case "PAUSED":
			return Pause{}, nil
		default:
			return nil, &ParseError{Line: line, Reason: "unknown state " + fields[1]}
		}
	case "SEEK":
		if len(fields) != 2 {
			return nil, &ParseError{Line: line, Reason: "SEEK takes exactly one argument"}
		}
		secs, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || secs < 0 {
			return nil, &ParseError{Line: line, Reason: "invalid seek position"}
		}
		return Seek{Seconds: secs}, nil
	default:
		return nil, &ParseError{Line: line, Reason: "unknown command " + fields[0]}
	}
}

// Reader feeds parsed commands from the parent process into the session.
type Reader struct {
	logger   zerolog.Logger
	shutdown atomic.Bool
}

// NewReader creates a Reader. It never touches the engine.
func NewReader(logger zerolog.Logger) *Reader {
	return &Reader{logger: logger}
}

// RequestShutdown sets the session-wide shutdown flag. Run returns before
// handling the next line.
func (r *Reader) RequestShutdown() {
	r.shutdown.Store(true)
}

// ShuttingDown reports whether RequestShutdown was called.
func (r *Reader) ShuttingDown() bool {
	return r.shutdown.Load()
}

// Run reads in line by line and hands every command to push. It returns nil
// at end of input or after a shutdown request, and a *ParseError on the first
// malformed line.
func (r *Reader) Run(in io.Reader, push func(Command)) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if r.shutdown.Load() {
			return nil
		}
		cmd, err := ParseLine(scanner.Text())
		if err != nil {
			r.logger.Error().Err(err).Str(xlog.FieldEvent, "protocol.parse_failed").Msg("malformed command")
			return err
		}
		if cmd == nil {
			continue
		}
		r.logger.Debug().Str(xlog.FieldEvent, "protocol.command").Stringer("command", cmd).Msg("command received")
		push(cmd)
	}
	if err := scanner.Err(); err != nil && !r.shutdown.Load() {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}
