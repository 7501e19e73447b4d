// Package gstreamer implements engine.Engine on top of GStreamer through
// go-gst. It requires the GStreamer runtime and plugins to be installed.
package gstreamer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"

	"transcode-session/internal/engine"
	xlog "transcode-session/internal/log"
)

var initOnce sync.Once

// Engine builds GStreamer pipelines from launch descriptions.
type Engine struct {
	logger zerolog.Logger
}

// New initializes GStreamer (once per process) and returns an Engine.
func New(logger zerolog.Logger) *Engine {
	initOnce.Do(func() { gst.Init(nil) })
	return &Engine{logger: logger}
}

// Build parses description with gst_parse_launch semantics.
func (e *Engine) Build(description string) (engine.Handle, error) {
	pipeline, err := gst.NewPipelineFromString(description)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline description: %w", err)
	}
	if pipeline == nil {
		return nil, fmt.Errorf("parse pipeline description: engine returned no pipeline")
	}
	e.logger.Debug().Str(xlog.FieldEvent, "engine.built").Str("name", pipeline.GetName()).Msg("pipeline constructed")
	return &handle{pipeline: pipeline, bus: pipeline.GetPipelineBus(), logger: e.logger}, nil
}

type handle struct {
	pipeline *gst.Pipeline
	bus      *gst.Bus
	logger   zerolog.Logger
}

func (h *handle) SetState(s engine.State) error {
	if err := h.pipeline.SetState(toGst(s)); err != nil {
		return fmt.Errorf("set pipeline state %s: %w", s, err)
	}
	return nil
}

func (h *handle) State() engine.State {
	return fromGst(h.pipeline.GetCurrentState())
}

func (h *handle) QueryPosition() (time.Duration, bool) {
	ok, pos := h.pipeline.QueryPosition(gst.FormatTime)
	if !ok || pos < 0 {
		return 0, false
	}
	return time.Duration(pos), true
}

func (h *handle) QueryDuration() (time.Duration, bool) {
	ok, dur := h.pipeline.QueryDuration(gst.FormatTime)
	if !ok || dur < 0 {
		return 0, false
	}
	return time.Duration(dur), true
}

func (h *handle) Seek(position time.Duration) bool {
	return h.pipeline.SeekSimple(int64(position), gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit)
}

func (h *handle) PollEvent(timeout time.Duration) engine.BusEvent {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		msg := h.bus.TimedPop(remaining)
		if msg == nil {
			return nil
		}
		if ev := h.translate(msg); ev != nil {
			return ev
		}
	}
}

// translate maps a bus message onto an engine event. Messages the session
// does not care about yield nil.
func (h *handle) translate(msg *gst.Message) engine.BusEvent {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		return &engine.BusError{
			Source:  msg.Source(),
			Message: gerr.Error(),
			Debug:   gerr.DebugString(),
		}
	case gst.MessageEOS:
		return engine.EndOfStream{}
	case gst.MessageStateChanged:
		oldState, newState := msg.ParseStateChanged()
		return engine.StateChanged{
			Source:   msg.Source(),
			Old:      fromGst(oldState),
			New:      fromGst(newState),
			TopLevel: msg.Source() == h.pipeline.GetName(),
		}
	case gst.MessageDurationChanged:
		return engine.DurationChanged{}
	default:
		return nil
	}
}

func (h *handle) Destroy() {
	if h.pipeline == nil {
		return
	}
	if err := h.pipeline.SetState(gst.StateNull); err != nil {
		h.logger.Warn().Err(err).Str(xlog.FieldEvent, "engine.teardown_failed").Msg("failed to set pipeline to NULL")
	}
	// The go-gst wrappers release the native objects once unreachable.
	h.pipeline = nil
	h.bus = nil
}

func toGst(s engine.State) gst.State {
	switch s {
	case engine.StateReady:
		return gst.StateReady
	case engine.StatePaused:
		return gst.StatePaused
	case engine.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGst(s gst.State) engine.State {
	switch s {
	case gst.StateReady:
		return engine.StateReady
	case gst.StatePaused:
		return engine.StatePaused
	case gst.StatePlaying:
		return engine.StatePlaying
	default:
		return engine.StateNull
	}
}
