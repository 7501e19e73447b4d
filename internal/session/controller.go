// Package session drives one engine pipeline per attempt: it builds the
// pipeline, waits for the parent's play command, runs the polling loop that
// multiplexes commands, bus events and manifest checks, and always tears the
// pipeline down before returning an Outcome.
package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"transcode-session/internal/engine"
	xlog "transcode-session/internal/log"
	"transcode-session/internal/manifest"
	"transcode-session/internal/metrics"
	"transcode-session/internal/monitor"
	"transcode-session/internal/protocol"
	"transcode-session/internal/queue"
	"transcode-session/internal/transcoder"
)

// Default loop timing.
const (
	DefaultPollInterval   = time.Second
	DefaultStatusInterval = 2 * time.Second
)

// Timing holds the bounded waits of an attempt.
type Timing struct {
	// PollInterval bounds each wait on the engine bus.
	PollInterval time.Duration
	// StatusInterval is the minimum time between periodic status events.
	StatusInterval time.Duration
	// StartTimeout bounds the wait for a play command and for the duration
	// needed to apply a pending seek.
	StartTimeout time.Duration
}

// DefaultTiming returns the production timing with the given start timeout.
func DefaultTiming(startTimeout time.Duration) Timing {
	return Timing{
		PollInterval:   DefaultPollInterval,
		StatusInterval: DefaultStatusInterval,
		StartTimeout:   startTimeout,
	}
}

// HostSampler reports host load alongside status events.
type HostSampler interface {
	Sample(ctx context.Context) (monitor.HostStats, error)
}

// Config wires a Controller to its collaborators.
type Config struct {
	Engine   engine.Engine
	Manifest *manifest.Monitor
	Commands *queue.Queue[protocol.Command]
	Emit     func(protocol.Event)
	Timing   Timing
	// Host is optional.
	Host   HostSampler
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Attempt describes one build-run-teardown cycle.
type Attempt struct {
	Number  int
	Profile transcoder.Profile
	// WaitForPlay makes the attempt block in AwaitStart before playing.
	WaitForPlay bool
	// Seek, when HasSeek is set, is applied once the engine knows the duration.
	Seek    int64
	HasSeek bool
}

// Controller runs attempts. It owns at most one engine handle at a time and
// is used from a single goroutine.
type Controller struct {
	engine   engine.Engine
	manifest *manifest.Monitor
	commands *queue.Queue[protocol.Command]
	emit     func(protocol.Event)
	timing   Timing
	host     HostSampler
	base     zerolog.Logger
	now      func() time.Time

	logger  zerolog.Logger
	handle  engine.Handle
	profile transcoder.Profile
	state   State
	started time.Time
	// backlog holds bus events consumed before the run loop started.
	backlog []engine.BusEvent
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Emit == nil {
		cfg.Emit = func(protocol.Event) {}
	}
	if cfg.Timing.PollInterval <= 0 {
		cfg.Timing.PollInterval = DefaultPollInterval
	}
	if cfg.Timing.StatusInterval <= 0 {
		cfg.Timing.StatusInterval = DefaultStatusInterval
	}
	return &Controller{
		engine:   cfg.Engine,
		manifest: cfg.Manifest,
		commands: cfg.Commands,
		emit:     cfg.Emit,
		timing:   cfg.Timing,
		host:     cfg.Host,
		base:     cfg.Logger,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// State returns a copy of the current attempt state.
func (c *Controller) State() State {
	return c.state
}

// Run executes one attempt. The engine handle is released on every path.
func (c *Controller) Run(ctx context.Context, a Attempt) Outcome {
	c.state = State{}
	c.backlog = nil
	c.profile = a.Profile
	c.started = c.now()
	c.logger = c.base.With().
		Int(xlog.FieldAttempt, a.Number).
		Str(xlog.FieldMode, string(a.Profile.Mode())).
		Logger()
	if a.HasSeek {
		c.state.SetPendingSeek(a.Seek)
	}

	defer c.teardown()

	if err := c.Prepare(a.Profile); err != nil {
		return FatalFailure{Err: err}
	}
	if a.WaitForPlay {
		if err := c.AwaitStart(ctx, c.timing.StartTimeout); err != nil {
			return FatalFailure{Err: err}
		}
	}
	if err := c.start(ctx); err != nil {
		return FatalFailure{Err: err}
	}
	return c.RunLoop(ctx)
}

// Prepare builds the pipeline for p and moves it to Ready.
func (c *Controller) Prepare(p transcoder.Profile) error {
	desc := transcoder.Describe(p)
	c.logger.Info().
		Str(xlog.FieldEvent, "session.prepare").
		Str(xlog.FieldURI, p.SourceURI).
		Str("description", desc).
		Msg("building pipeline")

	h, err := c.engine.Build(desc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	c.handle = h
	return c.transition(engine.StateReady)
}

// AwaitStart blocks on the command channel until a play command arrives.
// Seeks received meanwhile become the pending seek. The timeout applies to
// each wait, so every seek extends the window.
func (c *Controller) AwaitStart(ctx context.Context, timeout time.Duration) error {
	c.logger.Info().Str(xlog.FieldEvent, "session.await_start").Dur("timeout", timeout).Msg("waiting for play command")
	for {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd, err := c.commands.PopContext(waitCtx)
		cancel()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("await start: %w", ctxErr)
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		switch cmd := cmd.(type) {
		case protocol.Play:
			return nil
		case protocol.Seek:
			c.state.SetPendingSeek(cmd.Seconds)
			if d, ok := c.handle.QueryDuration(); ok && d > 0 {
				c.state.Duration = d
				c.applyPendingSeek()
			}
		default:
			return fmt.Errorf("%w: %s while waiting for play", ErrUnexpectedCommand, cmd)
		}
	}
}

// start moves the engine to Playing, applying a pending seek from Paused
// first when there is one.
func (c *Controller) start(ctx context.Context) error {
	if c.state.HasPendingSeek {
		if err := c.transition(engine.StatePaused); err != nil {
			return err
		}
		if err := c.awaitDuration(ctx); err != nil {
			return err
		}
		if c.state.Duration > 0 {
			c.applyPendingSeek()
		} else {
			c.logger.Warn().
				Str(xlog.FieldEvent, "session.seek_deferred").
				Int64(xlog.FieldSeek, c.state.PendingSeek).
				Msg("duration unknown, seek deferred until it is reported")
		}
	}
	return c.transition(engine.StatePlaying)
}

// awaitDuration polls the bus until the engine reports a nonzero duration or
// the start timeout elapses. An end-of-stream seen meanwhile is kept for the
// loop.
func (c *Controller) awaitDuration(ctx context.Context) error {
	deadline := c.now().Add(c.timing.StartTimeout)
	for {
		if d, ok := c.handle.QueryDuration(); ok && d > 0 {
			c.state.Duration = d
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("await duration: %w", err)
		}
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return nil
		}
		ev := c.handle.PollEvent(min(remaining, c.timing.PollInterval))
		switch ev := ev.(type) {
		case nil:
		case *engine.BusError:
			return c.busFailure(ev)
		case engine.StateChanged:
			if ev.TopLevel {
				c.state.Lifecycle = ev.New
			}
		case engine.EndOfStream:
			c.backlog = append(c.backlog, ev)
			return nil
		}
	}
}

// RunLoop is the polling loop of a playing attempt. Each iteration checks the
// manifest, services at most one command, emits periodic status and waits
// a bounded time for one bus event.
func (c *Controller) RunLoop(ctx context.Context) Outcome {
	c.state.LastStatus = c.now()
	for {
		if err := ctx.Err(); err != nil {
			return FatalFailure{Err: fmt.Errorf("session cancelled: %w", err)}
		}

		if out := c.checkManifest(); out != nil {
			return out
		}

		if cmd, ok := c.commands.TryPop(); ok {
			if out := c.handleCommand(cmd); out != nil {
				return out
			}
		}

		if c.now().Sub(c.state.LastStatus) >= c.timing.StatusInterval {
			c.emitStatus(ctx)
		}

		if out := c.handleBusEvent(ctx, c.nextBusEvent()); out != nil {
			return out
		}
	}
}

func (c *Controller) nextBusEvent() engine.BusEvent {
	if len(c.backlog) > 0 {
		ev := c.backlog[0]
		c.backlog = c.backlog[1:]
		return ev
	}
	return c.handle.PollEvent(c.timing.PollInterval)
}

// checkManifest stops validating once the manifest has been announced; the
// engine may legitimately rewrite the target duration later in the stream.
func (c *Controller) checkManifest() Outcome {
	if c.state.ManifestReady {
		return nil
	}
	switch c.manifest.Check() {
	case manifest.Broken:
		c.logger.Warn().
			Str(xlog.FieldEvent, "session.manifest_broken").
			Str(xlog.FieldPath, c.manifest.Path()).
			Msg("manifest lacks the expected target duration")
		return RetryableFailure{Err: fmt.Errorf("%w: %s has no %s:%d line",
			ErrBrokenManifest, c.manifest.Path(), manifest.TargetDurationTag, c.manifest.SegmentDuration())}
	case manifest.Valid:
		c.state.ManifestValid = true
		c.announceManifest()
	}
	return nil
}

// announceManifest emits ManifestReady once the manifest is valid and the
// engine reports a nonzero duration. The duration is queried at the point of
// emission.
func (c *Controller) announceManifest() {
	if c.state.ManifestReady || !c.state.ManifestValid {
		return
	}
	d, ok := c.handle.QueryDuration()
	if !ok || d <= 0 {
		return
	}
	c.state.Duration = d
	c.state.ManifestReady = true

	latency := c.now().Sub(c.started)
	metrics.ManifestReadySeconds.WithLabelValues(string(c.profile.Mode())).Observe(latency.Seconds())
	c.logger.Info().
		Str(xlog.FieldEvent, "session.manifest_ready").
		Str(xlog.FieldPath, c.manifest.Path()).
		Dur(xlog.FieldDuration, d).
		Dur("latency", latency).
		Msg("manifest ready")
	c.emit(protocol.ManifestReady{Path: c.manifest.Path(), Duration: d})
}

func (c *Controller) handleCommand(cmd protocol.Command) Outcome {
	c.logger.Debug().Str(xlog.FieldEvent, "session.command").Stringer("command", cmd).Msg("handling command")
	switch cmd := cmd.(type) {
	case protocol.Pause:
		if err := c.transition(engine.StatePaused); err != nil {
			return FatalFailure{Err: err}
		}
	case protocol.Play:
		if err := c.transition(engine.StatePlaying); err != nil {
			return FatalFailure{Err: err}
		}
	case protocol.Seek:
		c.logger.Info().
			Str(xlog.FieldEvent, "session.seek_restart").
			Int64(xlog.FieldSeek, cmd.Seconds).
			Msg("seek requested, restarting pipeline")
		return SeekRestartRequested{Seconds: cmd.Seconds}
	}
	return nil
}

func (c *Controller) handleBusEvent(ctx context.Context, ev engine.BusEvent) Outcome {
	switch ev := ev.(type) {
	case nil:
		return nil
	case *engine.BusError:
		return FatalFailure{Err: c.busFailure(ev)}
	case engine.EndOfStream:
		c.logger.Info().Str(xlog.FieldEvent, "session.eos").Msg("end of stream")
		c.manifest.Invalidate()
		if out := c.checkManifest(); out != nil {
			return out
		}
		return Success{}
	case engine.StateChanged:
		if !ev.TopLevel {
			return nil
		}
		c.logger.Debug().
			Str(xlog.FieldEvent, "session.state_changed").
			Stringer(xlog.FieldOldState, ev.Old).
			Stringer(xlog.FieldNewState, ev.New).
			Msg("pipeline state changed")
		c.state.Lifecycle = ev.New
		metrics.PipelineState.Set(float64(ev.New))
		c.emitStatus(ctx)
	case engine.DurationChanged:
		d, ok := c.handle.QueryDuration()
		if !ok || d <= 0 {
			return nil
		}
		wasUnknown := c.state.Duration <= 0
		c.state.Duration = d
		if c.state.HasPendingSeek {
			c.applyPendingSeek()
		}
		if wasUnknown {
			c.announceManifest()
		}
	}
	return nil
}

func (c *Controller) busFailure(ev *engine.BusError) error {
	category := engine.Classify(ev)
	metrics.BusErrorsTotal.WithLabelValues(category.String()).Inc()
	c.logger.Error().
		Str(xlog.FieldEvent, "session.bus_error").
		Str(xlog.FieldSource, ev.Source).
		Str(xlog.FieldCategory, category.String()).
		Str("debug", ev.Debug).
		Msg(ev.Message)
	return fmt.Errorf("%w: %w", ErrEngineRuntime, ev)
}

func (c *Controller) emitStatus(ctx context.Context) {
	now := c.now()
	if d, ok := c.handle.QueryDuration(); ok && d > 0 {
		c.state.Duration = d
	}
	playing := c.state.Lifecycle == engine.StatePlaying
	pos, ok := c.handle.QueryPosition()
	speed := c.state.Estimator.Multiplier()
	if ok || !playing {
		speed, _ = c.state.Estimator.Observe(playing, pos, now)
	}
	c.state.LastStatus = now
	metrics.SpeedMultiplier.Set(speed)

	ev := c.logger.Debug().
		Str(xlog.FieldEvent, "session.status").
		Stringer("state", c.state.Lifecycle).
		Dur(xlog.FieldPosition, pos).
		Dur(xlog.FieldDuration, c.state.Duration).
		Float64(xlog.FieldSpeed, speed)
	if c.host != nil {
		if stats, err := c.host.Sample(ctx); err == nil {
			metrics.HostCPUPercent.Set(stats.CPUPercent)
			metrics.HostRAMPercent.Set(stats.RAMPercent)
			ev = ev.Float64("cpu_percent", stats.CPUPercent).
				Float64("ram_percent", stats.RAMPercent).
				Bool("host_busy", stats.IsBusy)
		}
	}
	ev.Msg("pipeline status")

	c.emit(protocol.PipelineStatus{
		State:    c.state.Lifecycle,
		Position: pos,
		Duration: c.state.Duration,
		Speed:    speed,
	})
}

// applyPendingSeek seeks to the pending target, clamped to the known
// duration. A failed seek is logged and playback continues from where it is.
func (c *Controller) applyPendingSeek() {
	target := seekTarget(c.state.PendingSeek, c.state.Duration)
	c.state.ClearPendingSeek()

	if !c.handle.Seek(target) {
		c.logger.Warn().
			Str(xlog.FieldEvent, "session.seek_failed").
			Dur(xlog.FieldPosition, target).
			Msg("engine rejected seek")
		return
	}
	c.logger.Info().
		Str(xlog.FieldEvent, "session.seek_applied").
		Dur(xlog.FieldPosition, target).
		Msg("seek applied")
}

// maxSeekSeconds is the largest offset representable as a time.Duration.
const maxSeekSeconds = math.MaxInt64 / int64(time.Second)

// seekTarget converts seconds to a position, clamped to duration when it is
// known. The comparison happens in seconds so large offsets cannot overflow.
func seekTarget(seconds int64, duration time.Duration) time.Duration {
	if duration > 0 && seconds > int64(duration/time.Second) {
		return duration
	}
	return time.Duration(min(seconds, maxSeekSeconds)) * time.Second
}

func (c *Controller) transition(s engine.State) error {
	if err := c.handle.SetState(s); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrEngineTransition, s, err)
	}
	return nil
}

// teardown moves the engine to Null, destroys it and resets the state.
func (c *Controller) teardown() {
	if c.handle != nil {
		c.logger.Debug().
			Str(xlog.FieldEvent, "session.teardown").
			Stringer(xlog.FieldOldState, c.handle.State()).
			Float64(xlog.FieldSpeed, c.state.Estimator.Multiplier()).
			Msg("stopping pipeline")
		if err := c.handle.SetState(engine.StateNull); err != nil {
			c.logger.Warn().Err(err).Str(xlog.FieldEvent, "session.teardown").Msg("failed to stop pipeline")
		}
		c.handle.Destroy()
		c.handle = nil
	}
	c.state = State{}
	c.backlog = nil
	metrics.PipelineState.Set(float64(engine.StateNull))
	metrics.SpeedMultiplier.Set(0)
}
