package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	xlog "transcode-session/internal/log"
	"transcode-session/internal/queue"
)

// Writer drains the event channel onto the parent's stdout. Optional mirrors
// receive every event after it has been written.
type Writer struct {
	out     *bufio.Writer
	logger  zerolog.Logger
	mirrors []func(Event)
}

// NewWriter creates a Writer emitting to out.
func NewWriter(out io.Writer, logger zerolog.Logger, mirrors ...func(Event)) *Writer {
	return &Writer{out: bufio.NewWriter(out), logger: logger, mirrors: mirrors}
}

// Write emits one event line and flushes it.
func (w *Writer) Write(ev Event) error {
	if _, err := w.out.WriteString(Format(ev) + "\n"); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := w.out.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	for _, m := range w.mirrors {
		m(ev)
	}
	return nil
}

// Run writes events until ctx is done, then drains what is still queued so
// that nothing produced before shutdown is lost.
func (w *Writer) Run(ctx context.Context, events *queue.Queue[Event]) error {
	for {
		ev, err := events.PopContext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return w.drain(events)
			}
			return err
		}
		if err := w.Write(ev); err != nil {
			return err
		}
		w.logger.Debug().Str(xlog.FieldEvent, "protocol.event").Str("name", ev.Name()).Msg("event written")
	}
}

func (w *Writer) drain(events *queue.Queue[Event]) error {
	for {
		ev, ok := events.TryPop()
		if !ok {
			return nil
		}
		if err := w.Write(ev); err != nil {
			return err
		}
	}
}
