package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := Flags()
	require.NoError(t, fs.Parse(args))
	return fs
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yml")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(parseFlags(t, "--config", missingConfig(t)), "file:///movie.mkv")
	require.NoError(t, err)

	assert.Equal(t, "file:///movie.mkv", cfg.SourceURI)
	assert.Equal(t, "./hls_out", cfg.OutputDir)
	assert.Equal(t, "manifest.m3u8", cfg.ManifestName)
	assert.Equal(t, 2, cfg.SegmentDuration)
	assert.Equal(t, DefaultTargetFPS, cfg.TargetFPS)
	assert.Equal(t, 30, cfg.StartTimeoutSeconds)
	assert.True(t, cfg.EnableHWAccel)
	assert.False(t, cfg.EnableAudio)
	assert.NotEmpty(t, cfg.SessionID)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTargetFPSFromEnvironment(t *testing.T) {
	t.Setenv("TARGET_FPS", "24")
	cfg, err := Load(parseFlags(t, "--config", missingConfig(t)), "file:///movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.TargetFPS)
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	t.Setenv("CINE_TARGET_FPS", "25")
	t.Setenv("CINE_OUTPUT_DIR", "/tmp/out")
	cfg, err := Load(parseFlags(t, "--config", missingConfig(t)), "file:///movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.TargetFPS)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
}

func TestLoadNonPositiveFPSFallsBackToDefault(t *testing.T) {
	t.Setenv("TARGET_FPS", "0")
	cfg, err := Load(parseFlags(t, "--config", missingConfig(t)), "file:///movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetFPS, cfg.TargetFPS)
}

func TestLoadFileAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: /from/file\ntarget_fps: 50\nenable_audio: true\n"), 0o644))

	cfg, err := Load(parseFlags(t, "--config", path, "--target-fps", "60"), "file:///movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.OutputDir)
	assert.Equal(t, 60, cfg.TargetFPS, "flags override the file")
	assert.True(t, cfg.EnableAudio)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: [unterminated\n"), 0o644))

	_, err := Load(parseFlags(t, "--config", path), "file:///movie.mkv")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		SourceURI:           "file:///movie.mkv",
		OutputDir:           "out",
		ManifestName:        "m.m3u8",
		SegmentDuration:     2,
		TargetFPS:           30,
		StartTimeoutSeconds: 30,
		VideoBitrateKbps:    1000,
	}
	require.NoError(t, valid.Validate())

	broken := valid
	broken.SourceURI = ""
	broken.SegmentDuration = 0
	err := broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_uri")
	assert.Contains(t, err.Error(), "segment_duration")

	audio := valid
	audio.EnableAudio = true
	assert.Error(t, audio.Validate())
}
