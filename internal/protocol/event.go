package protocol

import (
	"fmt"
	"strings"
	"time"

	"transcode-session/internal/engine"
)

// Event names as they appear on the wire.
const (
	EventManifestReady  = "MANIFEST_READY"
	EventPipelineStatus = "PIPELINE_STATUS"
)

// Event is a session notification for the parent process. The set of
// implementations is closed: ManifestReady and PipelineStatus.
type Event interface {
	isEvent()
	Name() string
	Fields() []string
}

// ManifestReady announces that the HLS manifest at Path is playable.
type ManifestReady struct {
	Path     string
	Duration time.Duration
}

// PipelineStatus is the periodic playback snapshot.
type PipelineStatus struct {
	State    engine.State
	Position time.Duration
	Duration time.Duration
	Speed    float64
}

func (ManifestReady) isEvent()  {}
func (PipelineStatus) isEvent() {}

func (ManifestReady) Name() string  { return EventManifestReady }
func (PipelineStatus) Name() string { return EventPipelineStatus }

func (e ManifestReady) Fields() []string {
	return []string{e.Path, seconds(e.Duration)}
}

func (e PipelineStatus) Fields() []string {
	return []string{
		e.State.String(),
		seconds(e.Position),
		seconds(e.Duration),
		fmt.Sprintf("%.2f", e.Speed),
	}
}

// Format renders ev as a protocol line without the trailing newline:
// ::NAME:field:field:
func Format(ev Event) string {
	var b strings.Builder
	b.WriteString("::")
	b.WriteString(ev.Name())
	b.WriteByte(':')
	for _, f := range ev.Fields() {
		b.WriteString(f)
		b.WriteByte(':')
	}
	return b.String()
}

func seconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%d", int64(d/time.Second))
}
