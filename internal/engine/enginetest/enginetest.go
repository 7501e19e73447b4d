// Package enginetest provides a deterministic in-memory engine for tests of
// code that drives an engine.Handle.
package enginetest

import (
	"sync"
	"time"

	"transcode-session/internal/engine"
)

// PipelineName is the Source reported for top-level state changes.
const PipelineName = "pipeline0"

// Engine records every description it is asked to build.
type Engine struct {
	mu sync.Mutex

	// BuildErr makes every Build call fail.
	BuildErr error
	// Configure runs for each new handle before it is returned. Builds are
	// numbered from 1.
	Configure func(build int, h *Handle)

	descriptions []string
	handles      []*Handle
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Build(description string) (engine.Handle, error) {
	e.mu.Lock()
	e.descriptions = append(e.descriptions, description)
	if e.BuildErr != nil {
		err := e.BuildErr
		e.mu.Unlock()
		return nil, err
	}
	h := &Handle{Description: description}
	e.handles = append(e.handles, h)
	n := len(e.handles)
	configure := e.Configure
	e.mu.Unlock()

	if configure != nil {
		configure(n, h)
	}
	return h, nil
}

// Descriptions returns every description passed to Build, in order.
func (e *Engine) Descriptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.descriptions...)
}

// Handles returns every handle built so far, in order.
func (e *Engine) Handles() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Handle(nil), e.handles...)
}

// Handle is a scripted pipeline. Exported fields must be set before the
// handle is used.
type Handle struct {
	Description string

	// StateErrors makes SetState fail for the given target state.
	StateErrors map[engine.State]error
	// OnPoll runs at the start of every PollEvent with the 1-based poll count.
	OnPoll func(h *Handle, poll int)
	// Advance is added to the position on every poll while playing.
	Advance time.Duration
	// SeekFails makes Seek report failure.
	SeekFails bool

	mu            sync.Mutex
	state         engine.State
	position      time.Duration
	duration      time.Duration
	durationKnown bool
	positionLost  bool
	events        []engine.BusEvent
	polls         int
	transitions   []engine.State
	seeks         []time.Duration
	destroyed     bool
}

func (h *Handle) SetState(s engine.State) error {
	if err := h.StateErrors[s]; err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.state
	h.state = s
	h.transitions = append(h.transitions, s)
	if old != s {
		h.events = append(h.events, engine.StateChanged{Source: PipelineName, Old: old, New: s, TopLevel: true})
	}
	return nil
}

func (h *Handle) State() engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) QueryPosition() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state < engine.StatePaused || h.positionLost {
		return 0, false
	}
	return h.position, true
}

func (h *Handle) QueryDuration() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration, h.durationKnown
}

func (h *Handle) Seek(position time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeks = append(h.seeks, position)
	if h.SeekFails {
		return false
	}
	h.position = position
	return true
}

func (h *Handle) PollEvent(timeout time.Duration) engine.BusEvent {
	h.mu.Lock()
	h.polls++
	n := h.polls
	h.mu.Unlock()

	if h.OnPoll != nil {
		h.OnPoll(h, n)
	}

	h.mu.Lock()
	if h.state == engine.StatePlaying {
		h.position += h.Advance
	}
	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		h.mu.Unlock()
		return ev
	}
	h.mu.Unlock()

	time.Sleep(timeout)
	return nil
}

func (h *Handle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
	h.state = engine.StateNull
}

// Emit queues a bus event for a later PollEvent.
func (h *Handle) Emit(ev engine.BusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

// SetDuration makes the duration known and queues a DurationChanged event.
func (h *Handle) SetDuration(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.duration = d
	h.durationKnown = true
	h.events = append(h.events, engine.DurationChanged{})
}

// SetPosition overrides the playback position.
func (h *Handle) SetPosition(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = d
}

// LosePosition makes position queries fail until called with false.
func (h *Handle) LosePosition(lost bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.positionLost = lost
}

// Position returns the current playback position.
func (h *Handle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Transitions returns every state passed to a successful SetState.
func (h *Handle) Transitions() []engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]engine.State(nil), h.transitions...)
}

// Seeks returns every position passed to Seek.
func (h *Handle) Seeks() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.seeks...)
}

// Destroyed reports whether Destroy was called.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Polls returns the number of PollEvent calls.
func (h *Handle) Polls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.polls
}
