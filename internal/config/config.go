package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultTargetFPS applies when no usable frame rate is configured.
const DefaultTargetFPS = 30

// Config holds all the settings for a transcoding session.
type Config struct {
	SourceURI           string `mapstructure:"source_uri"`
	OutputDir           string `mapstructure:"output_dir"`
	ManifestName        string `mapstructure:"manifest_name"`
	SegmentDuration     int    `mapstructure:"segment_duration"`
	TargetFPS           int    `mapstructure:"target_fps"`
	StartTimeoutSeconds int    `mapstructure:"start_timeout_seconds"`
	EnableHWAccel       bool   `mapstructure:"enable_hw_accel"`
	VideoBitrateKbps    int    `mapstructure:"video_bitrate_kbps"`
	EnableAudio         bool   `mapstructure:"enable_audio"`
	AudioBitrate        int    `mapstructure:"audio_bitrate"`
	LogLevel            string `mapstructure:"log_level"`
	MetricsAddr         string `mapstructure:"metrics_addr"`
	OrchestratorURL     string `mapstructure:"orchestrator_url"`
	SessionID           string `mapstructure:"session_id"`
}

// StartTimeout is how long a prepared pipeline waits for the first Play.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceURI == "" {
		errs = append(errs, errors.New("source_uri is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.ManifestName == "" {
		errs = append(errs, errors.New("manifest_name is required"))
	}
	if c.SegmentDuration <= 0 {
		errs = append(errs, fmt.Errorf("segment_duration must be positive, got %d", c.SegmentDuration))
	}
	if c.StartTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("start_timeout_seconds must be positive, got %d", c.StartTimeoutSeconds))
	}
	if c.VideoBitrateKbps <= 0 {
		errs = append(errs, fmt.Errorf("video_bitrate_kbps must be positive, got %d", c.VideoBitrateKbps))
	}
	if c.EnableAudio && c.AudioBitrate <= 0 {
		errs = append(errs, fmt.Errorf("audio_bitrate must be positive, got %d", c.AudioBitrate))
	}
	return errors.Join(errs...)
}

// Flags declares the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("transcode-session", pflag.ContinueOnError)
	flags.String("config", "config.yml", "path to an optional YAML config file")
	flags.String("output-dir", "", "directory receiving the HLS manifest and segments")
	flags.Int("target-fps", 0, "output frame rate")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "listen address for /metrics and /healthz; empty disables")
	flags.String("orchestrator-url", "", "base URL receiving event callbacks; empty disables")
	flags.String("session-id", "", "session identifier used in logs and callbacks")
	return flags
}

var flagKeys = map[string]string{
	"output-dir":       "output_dir",
	"target-fps":       "target_fps",
	"log-level":        "log_level",
	"metrics-addr":     "metrics_addr",
	"orchestrator-url": "orchestrator_url",
	"session-id":       "session_id",
}

// Load merges defaults, the optional config file, the environment and the
// parsed flags (in increasing precedence). source is the positional source
// argument and may be empty when it comes from another layer.
func Load(flags *pflag.FlagSet, source string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("output_dir", "./hls_out")
	v.SetDefault("manifest_name", "manifest.m3u8")
	v.SetDefault("segment_duration", 2)
	v.SetDefault("target_fps", DefaultTargetFPS)
	v.SetDefault("start_timeout_seconds", 30)
	v.SetDefault("enable_hw_accel", true)
	v.SetDefault("video_bitrate_kbps", 8192)
	v.SetDefault("enable_audio", false)
	v.SetDefault("audio_bitrate", 128000)
	v.SetDefault("log_level", "info")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("source_uri", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("orchestrator_url", "")
	v.SetDefault("session_id", "")

	// 2. Read from File
	path := "config.yml"
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; settings may come from env or flags.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// 3. Environment
	v.SetEnvPrefix("CINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The frame rate is also recognized without the prefix.
	if err := v.BindEnv("target_fps", "CINE_TARGET_FPS", "TARGET_FPS"); err != nil {
		return nil, fmt.Errorf("bind target_fps: %w", err)
	}

	// 4. Flags
	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}
	if source != "" {
		v.Set("source_uri", source)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = DefaultTargetFPS
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return &cfg, nil
}
