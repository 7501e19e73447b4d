// Package transcoder builds the textual pipeline description handed to the
// media engine: a decode bin reading the source, an H.264 video branch, an
// optional AAC audio branch and an HLS sink.
package transcoder

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Mode labels the decoder configuration of an attempt.
type Mode string

const (
	ModeHardware Mode = "hardware"
	ModeSoftware Mode = "software"
)

// Profile is everything needed to describe one pipeline.
type Profile struct {
	SourceURI        string
	OutputDir        string
	ManifestName     string
	SegmentDuration  int // seconds
	TargetFPS        int
	VideoBitrateKbps int
	Audio            bool
	AudioBitrate     int // bits per second
	ForceSoftware    bool
}

// Mode returns the decoder mode of the profile.
func (p Profile) Mode() Mode {
	if p.ForceSoftware {
		return ModeSoftware
	}
	return ModeHardware
}

// ManifestPath is where the HLS sink writes its playlist.
func (p Profile) ManifestPath() string {
	return filepath.Join(p.OutputDir, p.ManifestName)
}

// SegmentPattern is the HLS sink's segment location template.
func (p Profile) SegmentPattern() string {
	return filepath.Join(p.OutputDir, "%d.ts")
}

// Describe renders the launch description for p.
func Describe(p Profile) string {
	src := fmt.Sprintf("%s name=src uri=%q", ElementDecodeBin, p.SourceURI)
	if p.ForceSoftware {
		src += " force-sw-decoders=1"
	}

	sink := fmt.Sprintf(
		"%s name=sink max-files=0 playlist-length=0 target-duration=%d location=%q playlist-location=%q",
		ElementHLSSink, p.SegmentDuration, p.SegmentPattern(), p.ManifestPath(),
	)

	// One keyframe per segment keeps segment boundaries exact.
	keyInt := p.TargetFPS * p.SegmentDuration
	if keyInt <= 0 {
		keyInt = p.TargetFPS
	}
	video := fmt.Sprintf(
		"src. ! queue ! videoconvert ! videorate ! video/x-raw,format=I420,framerate=%d/1 ! %s bitrate=%d key-int-max=%d ! sink.video",
		p.TargetFPS, EncoderH264, p.VideoBitrateKbps, keyInt,
	)

	parts := []string{src, sink, video}
	if p.Audio {
		parts = append(parts, fmt.Sprintf(
			"src. ! queue ! audioconvert ! audiorate ! audio/x-raw,channels=2 ! %s bitrate=%d ! sink.audio",
			EncoderAAC, p.AudioBitrate,
		))
	}
	return strings.Join(parts, " ")
}

// SourceURI normalizes the session input. URIs with a scheme are kept;
// anything else is treated as a local path and turned into a file:// URI.
func SourceURI(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("empty source")
	}
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 {
		return input, nil
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
