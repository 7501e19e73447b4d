package engine

import (
	"fmt"
	"strings"
)

// BusEvent is an asynchronous engine notification. The set of
// implementations is closed: *BusError, EndOfStream, StateChanged and
// DurationChanged.
type BusEvent interface {
	isBusEvent()
}

// BusError is an error reported by an element on the engine bus.
type BusError struct {
	Source  string
	Message string
	Debug   string
}

// EndOfStream signals that every sink has received all data.
type EndOfStream struct{}

// StateChanged reports a lifecycle change. TopLevel is true when the
// pipeline itself changed, as opposed to one of its elements.
type StateChanged struct {
	Source   string
	Old      State
	New      State
	TopLevel bool
}

// DurationChanged signals that the duration should be queried again.
type DurationChanged struct{}

func (*BusError) isBusEvent()       {}
func (EndOfStream) isBusEvent()     {}
func (StateChanged) isBusEvent()    {}
func (DurationChanged) isBusEvent() {}

func (e *BusError) Error() string {
	if e.Source == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// ErrorCategory groups bus errors for logs and metrics.
type ErrorCategory int

const (
	ErrCategoryUnknown ErrorCategory = iota
	ErrCategoryNetwork
	ErrCategoryCodec
	ErrCategoryResource
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var categoryKeywords = []struct {
	category ErrorCategory
	keywords []string
}{
	{ErrCategoryCodec, []string{"codec", "decode", "encode", "negotiat", "caps", "missing plugin", "plug-in", "no decoder", "h264", "vp9", "hevc"}},
	{ErrCategoryResource, []string{"resource", "no such file", "permission", "could not open", "could not write", "disk", "space"}},
	{ErrCategoryNetwork, []string{"connection", "timeout", "timed out", "unreachable", "network", "dns", "resolve", "socket", "http"}},
}

// Classify categorizes a bus error from its message and debug text.
func Classify(err *BusError) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}
	combined := strings.ToLower(err.Message + " " + err.Debug)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(combined, kw) {
				return c.category
			}
		}
	}
	return ErrCategoryUnknown
}
