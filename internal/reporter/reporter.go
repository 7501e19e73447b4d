// Package reporter mirrors outbound session events to the orchestrator in
// the background. Delivery is best-effort and never blocks the protocol
// writer.
package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "transcode-session/internal/log"
	"transcode-session/internal/metrics"
	"transcode-session/internal/protocol"
	"transcode-session/pkg/models"
)

// DefaultBuffer is the number of events held while the orchestrator is slow.
const DefaultBuffer = 64

// Poster delivers payloads to the orchestrator.
type Poster interface {
	PostEvent(ctx context.Context, payload models.SessionEventPayload) error
	Finalize(ctx context.Context, payload models.SessionResultPayload) error
}

// Service handles the asynchronous event mirror.
type Service struct {
	poster    Poster
	sessionID string
	logger    zerolog.Logger
	now       func() time.Time

	queue chan models.SessionEventPayload
	once  sync.Once
	done  chan struct{}
}

// New creates a reporter. buffer <= 0 selects DefaultBuffer.
func New(poster Poster, sessionID string, buffer int, logger zerolog.Logger) *Service {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Service{
		poster:    poster,
		sessionID: sessionID,
		logger:    logger,
		now:       time.Now,
		queue:     make(chan models.SessionEventPayload, buffer),
		done:      make(chan struct{}),
	}
}

// Start launches the delivery loop in a non-blocking way. The loop exits
// when ctx is cancelled or after Close once the buffer is drained.
func (s *Service) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		s.logger.Debug().Str(xlog.FieldEvent, "reporter.start").Msg("event mirror started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug().Str(xlog.FieldEvent, "reporter.stop").Msg("event mirror cancelled")
				return
			case payload, ok := <-s.queue:
				if !ok {
					return
				}
				s.deliver(ctx, payload)
			}
		}
	}()
}

// Mirror queues ev for delivery. A full buffer drops the event.
func (s *Service) Mirror(ev protocol.Event) {
	payload := Payload(s.sessionID, ev, s.now())
	select {
	case s.queue <- payload:
	default:
		metrics.CallbackFailuresTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn().Str(xlog.FieldEvent, "reporter.dropped").Str("name", ev.Name()).Msg("event mirror buffer full, dropping event")
	}
}

// Close stops accepting events. Mirror must not be called afterwards.
func (s *Service) Close() {
	s.once.Do(func() { close(s.queue) })
}

// Wait blocks until the delivery loop has exited.
func (s *Service) Wait() {
	<-s.done
}

// Shutdown closes the reporter and waits for queued events to be delivered
// or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Close()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize reports the session result synchronously.
func (s *Service) Finalize(ctx context.Context, result models.SessionResultPayload) error {
	if err := s.poster.Finalize(ctx, result); err != nil {
		metrics.CallbackFailuresTotal.WithLabelValues("finalize").Inc()
		return err
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, payload models.SessionEventPayload) {
	if err := s.poster.PostEvent(ctx, payload); err != nil {
		metrics.CallbackFailuresTotal.WithLabelValues("post").Inc()
		s.logger.Warn().Err(err).Str(xlog.FieldEvent, "reporter.post_failed").Str("name", payload.Event).Msg("failed to mirror event")
	}
}

// Payload converts a protocol event to its orchestrator representation.
func Payload(sessionID string, ev protocol.Event, at time.Time) models.SessionEventPayload {
	p := models.SessionEventPayload{
		SessionID: sessionID,
		Event:     ev.Name(),
		Timestamp: at.UTC(),
	}
	switch ev := ev.(type) {
	case protocol.ManifestReady:
		p.ManifestPath = ev.Path
		p.DurationSec = int64(ev.Duration / time.Second)
	case protocol.PipelineStatus:
		p.State = ev.State.String()
		p.PositionSec = int64(ev.Position / time.Second)
		p.DurationSec = int64(ev.Duration / time.Second)
		p.Speed = ev.Speed
	}
	return p
}
