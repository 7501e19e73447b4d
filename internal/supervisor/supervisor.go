// Package supervisor runs session attempts in sequence and owns every retry
// decision: seek restarts keep the decoder mode, the first broken manifest
// triggers one software retry, anything else ends the session.
package supervisor

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"transcode-session/internal/engine"
	xlog "transcode-session/internal/log"
	"transcode-session/internal/manifest"
	"transcode-session/internal/metrics"
	"transcode-session/internal/protocol"
	"transcode-session/internal/queue"
	"transcode-session/internal/session"
	"transcode-session/internal/transcoder"
)

// Options configures a Supervisor.
type Options struct {
	Engine   engine.Engine
	Planner  *transcoder.Planner
	Commands *queue.Queue[protocol.Command]
	Events   *queue.Queue[protocol.Event]
	Timing   session.Timing
	// Host is optional.
	Host session.HostSampler
	// Watch enables fsnotify-backed manifest change detection.
	Watch  bool
	Logger zerolog.Logger
}

// Supervisor is the only consumer of the command channel and the only
// producer on the event channel.
type Supervisor struct {
	opts   Options
	logger zerolog.Logger

	// announced enforces at most one ManifestReady per session.
	announced bool
	attempts  int
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	return &Supervisor{opts: opts, logger: opts.Logger}
}

// Run drives attempts until one ends the session and returns that outcome.
// The returned outcome is always Success or FatalFailure.
func (s *Supervisor) Run(ctx context.Context) session.Outcome {
	profile := s.opts.Planner.Profile(false)

	if err := os.MkdirAll(profile.OutputDir, 0o755); err != nil {
		return session.FatalFailure{Err: fmt.Errorf("%w: create output dir: %w", session.ErrConfiguration, err)}
	}

	mon := manifest.NewMonitor(profile.ManifestPath(), profile.SegmentDuration, s.logger)
	if s.opts.Watch {
		if err := mon.Watch(); err != nil {
			s.logger.Warn().Err(err).Str(xlog.FieldEvent, "supervisor.watch_failed").Msg("manifest watcher unavailable, reading on every check")
		} else {
			defer func() {
				if err := mon.Close(); err != nil {
					s.logger.Warn().Err(err).Msg("close manifest watcher")
				}
			}()
		}
	}

	ctrl := session.NewController(session.Config{
		Engine:   s.opts.Engine,
		Manifest: mon,
		Commands: s.opts.Commands,
		Emit:     s.emit,
		Timing:   s.opts.Timing,
		Host:     s.opts.Host,
		Logger:   s.logger,
	})

	attempt := session.Attempt{Number: 1, Profile: profile, WaitForPlay: true}
	retried := false
	for {
		if err := manifest.RemoveArtifacts(profile.OutputDir, profile.ManifestName); err != nil {
			return session.FatalFailure{Err: fmt.Errorf("clean output dir: %w", err)}
		}
		mon.Invalidate()

		s.logger.Info().
			Str(xlog.FieldEvent, "supervisor.attempt_start").
			Int(xlog.FieldAttempt, attempt.Number).
			Str(xlog.FieldMode, string(attempt.Profile.Mode())).
			Bool("wait_for_play", attempt.WaitForPlay).
			Bool("hw_allowed", s.opts.Planner.HardwareAllowed()).
			Msg("starting attempt")

		s.attempts++
		out := ctrl.Run(ctx, attempt)

		metrics.AttemptsTotal.WithLabelValues(string(attempt.Profile.Mode()), session.Label(out)).Inc()
		logEv := s.logger.Info()
		if err := session.Err(out); err != nil {
			logEv = s.logger.Warn().Err(err)
		}
		logEv.Str(xlog.FieldEvent, "supervisor.attempt_end").
			Int(xlog.FieldAttempt, attempt.Number).
			Str(xlog.FieldMode, string(attempt.Profile.Mode())).
			Str(xlog.FieldOutcome, session.Label(out)).
			Msg("attempt finished")

		next := session.Attempt{Number: attempt.Number + 1, Profile: attempt.Profile}
		switch o := out.(type) {
		case session.SeekRestartRequested:
			metrics.SeekRestartsTotal.Inc()
			next.Seek, next.HasSeek = o.Seconds, true
		case session.RetryableFailure:
			if retried {
				return session.FatalFailure{Err: fmt.Errorf("software retry failed: %w", o.Err)}
			}
			retried = true
			metrics.SoftwareFallbacksTotal.Inc()
			next.Profile = s.opts.Planner.Profile(true)
			// Keep the last requested position.
			next.Seek, next.HasSeek = attempt.Seek, attempt.HasSeek
		case session.Success, session.FatalFailure:
			return out
		default:
			return session.FatalFailure{Err: fmt.Errorf("unknown attempt outcome %T", out)}
		}
		attempt = next
	}
}

// Attempts returns the number of attempts started so far. It must not be
// called while Run is in progress.
func (s *Supervisor) Attempts() int {
	return s.attempts
}

func (s *Supervisor) emit(ev protocol.Event) {
	if _, ok := ev.(protocol.ManifestReady); ok {
		if s.announced {
			s.logger.Debug().Str(xlog.FieldEvent, "supervisor.manifest_ready_suppressed").Msg("manifest already announced this session")
			return
		}
		s.announced = true
	}
	s.opts.Events.Push(ev)
}
