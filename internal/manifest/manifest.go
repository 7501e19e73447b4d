// Package manifest inspects the HLS playlist written by the engine. The
// checks are purely textual and never touch the engine.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grafov/m3u8"
)

// TargetDurationTag is the playlist tag declaring the segment duration.
const TargetDurationTag = "#EXT-X-TARGETDURATION"

// Status is the result of inspecting the manifest.
type Status int

const (
	// Missing means no manifest has been written yet.
	Missing Status = iota
	// Broken means a manifest exists but lacks the expected target duration.
	Broken
	// Valid means the manifest declares the expected target duration.
	Valid
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Broken:
		return "broken"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// Exists reports whether a manifest file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// segmentCapacity is the initial segment capacity of a decoded playlist.
// The decoder grows it as needed.
const segmentCapacity = 64

// LooksValid reports whether the manifest at path decodes as a media playlist
// whose target duration is segmentDuration seconds. Some hardware decoders
// produce playlists with a wrong target duration; those, and unreadable files,
// are reported invalid.
func LooksValid(path string, segmentDuration int) bool {
	f, err := os.Open(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return false
	}
	defer f.Close()

	p, err := m3u8.NewMediaPlaylist(0, segmentCapacity)
	if err != nil {
		return false
	}
	// The engine appends segments while we read, so the trailing line may be
	// incomplete. Non-strict decoding tolerates that.
	if err := p.DecodeFrom(bufio.NewReader(f), false); err != nil {
		return false
	}
	return p.TargetDuration == float64(segmentDuration)
}

// Inspect combines Exists and LooksValid.
func Inspect(path string, segmentDuration int) Status {
	if !Exists(path) {
		return Missing
	}
	if !LooksValid(path, segmentDuration) {
		return Broken
	}
	return Valid
}

// RemoveArtifacts deletes the manifest and any segment files left in dir by a
// previous attempt. A missing directory or file is not an error.
func RemoveArtifacts(dir, manifestName string) error {
	if err := os.Remove(filepath.Join(dir, manifestName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	segments, err := filepath.Glob(filepath.Join(dir, "*.ts"))
	if err != nil {
		return fmt.Errorf("list segments: %w", err)
	}
	for _, s := range segments {
		if err := os.Remove(s); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove segment %s: %w", filepath.Base(s), err)
		}
	}
	return nil
}
