package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/auravis/auravis/pkg/audio/pcm"
	"github.com/auravis/auravis/pkg/viz"
)

// Config is the complete server configuration.
type Config struct {
	// Listen is the HTTP/WebSocket listen address.
	Listen string `yaml:"listen"`

	Session   viz.SessionConfig `yaml:"session"`
	RTP       RTPConfig         `yaml:"rtp"`
	Snapshots SnapshotsConfig   `yaml:"snapshots"`
	Export    ExportConfig      `yaml:"export"`
	Log       LogConfig         `yaml:"log"`
}

// RTPConfig configures the optional RTP/UDP PCM ingest.
type RTPConfig struct {
	Enabled bool `yaml:"enabled"`

	// Listen is the UDP listen address, e.g. ":5004".
	Listen string `yaml:"listen"`

	// PayloadType filters inbound packets; RTP has no registered static
	// type for L16 mono at arbitrary rates, so deployments pick a
	// dynamic one (96..127).
	PayloadType uint8 `yaml:"payload_type"`

	// ClockRate is the sample rate of the RTP stream. When it differs
	// from the session rate the payload is resampled.
	ClockRate int `yaml:"clock_rate"`

	// Session is the session ID packets are routed to.
	Session string `yaml:"session"`
}

// SnapshotsConfig selects the projector snapshot store.
type SnapshotsConfig struct {
	// Dir is the Badger database directory. Empty with InMemory false
	// disables snapshot persistence.
	Dir string `yaml:"dir"`

	// InMemory uses a process-local store, for tests and ephemeral runs.
	InMemory bool `yaml:"in_memory"`
}

// ExportConfig selects the session export backend.
type ExportConfig struct {
	// Backend is "local", "s3" or empty to disable exports.
	Backend string `yaml:"backend"`

	// Dir is the local export directory (backend "local"). Empty
	// means ~/.auravis/serve/data.
	Dir string `yaml:"dir"`

	// S3 settings (backend "s3").
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:  "127.0.0.1:8780",
		Session: viz.DefaultSessionConfig(),
		RTP: RTPConfig{
			Listen:      ":5004",
			PayloadType: 96,
			ClockRate:   16000,
			Session:     "rtp",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path, expands ${VAR} references from the environment,
// decodes it strictly over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes one YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, naming the offending field.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen must not be empty")
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if c.RTP.Enabled {
		if c.RTP.Listen == "" {
			return fmt.Errorf("config: rtp.listen must not be empty when rtp is enabled")
		}
		if c.RTP.PayloadType < 96 || c.RTP.PayloadType > 127 {
			return fmt.Errorf("config: rtp.payload_type must be a dynamic type (96..127), got %d", c.RTP.PayloadType)
		}
		if c.RTP.ClockRate <= 0 {
			return fmt.Errorf("config: rtp.clock_rate must be positive, got %d", c.RTP.ClockRate)
		}
		if c.RTP.Session == "" {
			return fmt.Errorf("config: rtp.session must name a target session")
		}
	}
	if c.Snapshots.Dir != "" && c.Snapshots.InMemory {
		return fmt.Errorf("config: snapshots.dir and snapshots.in_memory are mutually exclusive")
	}
	switch c.Export.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("config: export.backend must be \"local\" or \"s3\", got %q", c.Export.Backend)
	}
	if c.Export.Backend == "s3" && c.Export.Bucket == "" {
		return fmt.Errorf("config: export.bucket must be set for the s3 backend")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) validateSession() error {
	s := c.Session
	if s.SampleRate < 0 {
		return fmt.Errorf("config: session.sample_rate must not be negative, got %d", s.SampleRate)
	}
	if s.SampleRate > 0 {
		if _, err := pcm.FormatForRate(s.SampleRate); err != nil {
			return fmt.Errorf("config: session.sample_rate %d is not a supported PCM rate", s.SampleRate)
		}
	}
	if s.Smoothing < 0 || s.Smoothing > 1 {
		return fmt.Errorf("config: session.smoothing must be in [0,1], got %g", s.Smoothing)
	}
	if s.MinSeconds > 0 && s.WindowSeconds > 0 && s.MinSeconds > s.WindowSeconds {
		return fmt.Errorf("config: session.min_seconds %g exceeds window_seconds %g", s.MinSeconds, s.WindowSeconds)
	}
	if s.TargetSamples < 0 {
		return fmt.Errorf("config: session.target_samples must not be negative, got %d", s.TargetSamples)
	}
	return nil
}
