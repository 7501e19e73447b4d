package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"transcode-session/internal/client"
	"transcode-session/internal/config"
	"transcode-session/internal/engine/gstreamer"
	xlog "transcode-session/internal/log"
	"transcode-session/internal/monitor"
	"transcode-session/internal/protocol"
	"transcode-session/internal/queue"
	"transcode-session/internal/reporter"
	"transcode-session/internal/server"
	"transcode-session/internal/session"
	"transcode-session/internal/supervisor"
	"transcode-session/internal/transcoder"
	"transcode-session/pkg/models"
)

const callbackTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// 1. Load Configuration
	// Defaults, then config.yml, then CINE_* environment, then flags.
	flags := config.Flags()
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: transcode-session [flags] <source>\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return session.ExitSuccess
		}
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		return session.ExitFailure
	}

	cfg, err := config.Load(flags, flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return session.ExitFailure
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel, SessionID: cfg.SessionID})
	logger := xlog.WithComponent("main")

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Str(xlog.FieldEvent, "config.invalid").Msg("invalid configuration")
		return session.ExitFailure
	}
	uri, err := transcoder.SourceURI(cfg.SourceURI)
	if err != nil {
		logger.Error().Err(err).Str(xlog.FieldEvent, "config.invalid_source").Msg("invalid source")
		return session.ExitFailure
	}

	logger.Info().
		Str(xlog.FieldEvent, "session.start").
		Str(xlog.FieldURI, uri).
		Str(xlog.FieldPath, cfg.OutputDir).
		Int("target_fps", cfg.TargetFPS).
		Bool("hw_accel", cfg.EnableHWAccel).
		Msg("starting transcode session")

	// 2. Setup Context for Graceful Shutdown
	// SIGINT and SIGTERM cancel the session; a protocol error does too.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	commands := queue.New[protocol.Command]()
	events := queue.New[protocol.Event]()

	// 3. Optional orchestrator mirror
	var (
		mirrors []func(protocol.Event)
		rep     *reporter.Service
	)
	repCtx, cancelRep := context.WithCancel(context.Background())
	defer cancelRep()
	if cfg.OrchestratorURL != "" {
		orch := client.NewOrchestratorClient(cfg.OrchestratorURL, cfg.SessionID)
		rep = reporter.New(orch, cfg.SessionID, reporter.DefaultBuffer, xlog.WithComponent("reporter"))
		rep.Start(repCtx)
		mirrors = append(mirrors, rep.Mirror)
	}

	// 4. Command reader
	// Stdin cannot be interrupted, so the reader is left running at exit.
	reader := protocol.NewReader(xlog.WithComponent("protocol"))
	readerErr := make(chan error, 1)
	go func() {
		err := reader.Run(os.Stdin, commands.Push)
		readerErr <- err
		if err != nil && !reader.ShuttingDown() {
			cancelSession()
		}
	}()

	// 5. Orchestrator, event writer and metrics listener
	sup := supervisor.New(supervisor.Options{
		Engine: gstreamer.New(xlog.WithComponent("engine")),
		Planner: transcoder.NewPlanner(transcoder.Profile{
			SourceURI:        uri,
			OutputDir:        cfg.OutputDir,
			ManifestName:     cfg.ManifestName,
			SegmentDuration:  cfg.SegmentDuration,
			TargetFPS:        cfg.TargetFPS,
			VideoBitrateKbps: cfg.VideoBitrateKbps,
			Audio:            cfg.EnableAudio,
			AudioBitrate:     cfg.AudioBitrate,
		}, cfg.EnableHWAccel),
		Commands: commands,
		Events:   events,
		Timing:   session.DefaultTiming(cfg.StartTimeout()),
		Host:     monitor.NewSystemMonitor(),
		Watch:    true,
		Logger:   xlog.WithComponent("session"),
	})

	started := time.Now()
	g, gctx := errgroup.WithContext(sessionCtx)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	writer := protocol.NewWriter(os.Stdout, xlog.WithComponent("protocol"), mirrors...)
	g.Go(func() error {
		return writer.Run(writerCtx, events)
	})

	if cfg.MetricsAddr != "" {
		srv := server.NewMetricsServer(cfg.MetricsAddr, nil, xlog.WithComponent("server"))
		g.Go(func() error {
			if err := srv.Run(serverCtx); err != nil {
				logger.Warn().Err(err).Str(xlog.FieldEvent, "server.failed").Msg("metrics listener stopped")
			}
			return nil
		})
	}

	var outcome session.Outcome
	g.Go(func() error {
		defer stopServer()
		// The writer drains whatever the session produced before stopping.
		defer stopWriter()
		outcome = sup.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str(xlog.FieldEvent, "session.writer_failed").Msg("event writer failed")
	}
	reader.RequestShutdown()

	code := session.ExitCode(outcome)
	select {
	case err := <-readerErr:
		if err != nil {
			logger.Error().Err(err).Str(xlog.FieldEvent, "session.protocol_error").Msg("command stream failed")
			code = session.ExitFailure
		}
	default:
	}

	// 6. Report the result
	if rep != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		if err := rep.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str(xlog.FieldEvent, "reporter.shutdown").Msg("event mirror did not drain")
		}
		cancel()
		cancelRep()

		finalizeCtx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		if err := rep.Finalize(finalizeCtx, result(outcome, code, sup.Attempts(), time.Since(started))); err != nil {
			logger.Warn().Err(err).Str(xlog.FieldEvent, "reporter.finalize_failed").Msg("failed to report session result")
		}
		cancel()
	}

	logEv := logger.Info()
	if err := session.Err(outcome); err != nil {
		logEv = logger.Error().Err(err)
	}
	logEv.Str(xlog.FieldEvent, "session.end").
		Str(xlog.FieldOutcome, session.Label(outcome)).
		Int("exit_code", code).
		Int("attempts", sup.Attempts()).
		Msg("session finished")
	return code
}

func result(outcome session.Outcome, code, attempts int, elapsed time.Duration) models.SessionResultPayload {
	var p models.SessionResultPayload
	p.ExitCode = code
	p.Status = models.StatusFailed
	if code == session.ExitSuccess {
		p.Status = models.StatusCompleted
	}
	if err := session.Err(outcome); err != nil {
		p.ErrorMsg = err.Error()
	}
	p.Metrics.Attempts = attempts
	p.Metrics.TotalTimeMS = elapsed.Milliseconds()
	return p
}
