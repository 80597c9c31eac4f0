// Package config loads and validates the service configuration from a YAML
// file. Invariants the rest of the code relies on (exact sample-rate ratio,
// buffer capacity a multiple of the frame size) are enforced here so they
// never need runtime branches.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/discord-scribe/internal/audio"
)

// Config is the complete service configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Audio    AudioConfig    `yaml:"audio"`
	Whisper  WhisperConfig  `yaml:"whisper"`
	Server   ServerConfig   `yaml:"server"`
	EventLog EventLogConfig `yaml:"event_log"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DiscordConfig identifies the voice channel to join. The bot token may also
// come from the DISCORD_BOT_TOKEN environment variable, which wins over the
// file so tokens can stay out of config files.
type DiscordConfig struct {
	Token          string `yaml:"token"`
	GuildID        string `yaml:"guild_id"`
	VoiceChannelID string `yaml:"voice_channel_id"`

	// SilenceTimeoutMillis is how long an SSRC must go without packets
	// before the transport synthesizes a stop-speaking edge.
	SilenceTimeoutMillis int `yaml:"silence_timeout_ms"`
}

// AudioConfig contains ingest-side parameters.
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	FrameMillis   int `yaml:"frame_ms"`
	BufferSeconds int `yaml:"buffer_seconds"`

	// SaveDir, when set, writes every flushed utterance to a WAV file for
	// diagnostics.
	SaveDir string `yaml:"save_dir"`
}

// WhisperConfig contains transcription engine parameters.
type WhisperConfig struct {
	Endpoint            string `yaml:"endpoint"`
	TimeoutMillis       int    `yaml:"timeout_ms"`
	MaxRetries          int    `yaml:"max_retries"`
	MinUtteranceMillis  int    `yaml:"min_utterance_ms"`
	ContextWindowMillis int    `yaml:"context_window_ms"`
	MaxContextTokens    int    `yaml:"max_context_tokens"`
	Workers             int    `yaml:"workers"`
	QueueSize           int    `yaml:"queue_size"`
}

// ServerConfig contains the HTTP server (metrics, health, websocket feed).
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// EventLogConfig controls the raw transport-event diagnostic tap.
type EventLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if tok := os.Getenv("DISCORD_BOT_TOKEN"); tok != "" {
		cfg.Discord.Token = tok
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns a config pre-filled with the values the pipeline is built
// around. A config file only needs to override what differs.
func Default() *Config {
	return &Config{
		Discord: DiscordConfig{
			SilenceTimeoutMillis: 600,
		},
		Audio: AudioConfig{
			SampleRate:    audio.SampleRate,
			Channels:      audio.Channels,
			FrameMillis:   audio.FrameMillis,
			BufferSeconds: audio.BufferSeconds,
		},
		Whisper: WhisperConfig{
			TimeoutMillis:       30000,
			MaxRetries:          3,
			MinUtteranceMillis:  500,
			ContextWindowMillis: 5000,
			MaxContextTokens:    100,
			Workers:             2,
			QueueSize:           16,
		},
		Server: ServerConfig{
			Enabled: true,
			Address: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Whisper.Validate(); err != nil {
		return fmt.Errorf("whisper config: %w", err)
	}
	if err := c.Discord.Validate(); err != nil {
		return fmt.Errorf("discord config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.EventLog.Validate(); err != nil {
		return fmt.Errorf("event_log config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (d *DiscordConfig) Validate() error {
	if d.SilenceTimeoutMillis < 100 {
		return fmt.Errorf("silence_timeout_ms must be at least 100, got %d", d.SilenceTimeoutMillis)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate != audio.SampleRate {
		return fmt.Errorf("sample_rate must be %d for Discord voice, got %d", audio.SampleRate, a.SampleRate)
	}
	if a.Channels != audio.Channels {
		return fmt.Errorf("channels must be %d for Discord voice, got %d", audio.Channels, a.Channels)
	}
	if a.SampleRate%audio.EngineSampleRate != 0 {
		return fmt.Errorf("sample_rate %d must be an exact multiple of the engine rate %d", a.SampleRate, audio.EngineSampleRate)
	}
	if a.FrameMillis <= 0 {
		return fmt.Errorf("frame_ms must be positive, got %d", a.FrameMillis)
	}
	if a.BufferSeconds < 1 {
		return fmt.Errorf("buffer_seconds must be at least 1, got %d", a.BufferSeconds)
	}
	// Buffer capacity must hold a whole number of frames so a frame never
	// fails to fit a freshly emptied buffer.
	frameSamples := a.SampleRate / 1000 * a.FrameMillis * a.Channels
	bufSamples := a.SampleRate * a.BufferSeconds * a.Channels
	if bufSamples%frameSamples != 0 {
		return fmt.Errorf("buffer capacity (%d samples) is not a multiple of the frame size (%d samples)", bufSamples, frameSamples)
	}
	return nil
}

func (w *WhisperConfig) Validate() error {
	if w.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if w.TimeoutMillis < 1 {
		return fmt.Errorf("timeout_ms must be at least 1, got %d", w.TimeoutMillis)
	}
	if w.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", w.MaxRetries)
	}
	if w.MinUtteranceMillis < 0 {
		return fmt.Errorf("min_utterance_ms cannot be negative, got %d", w.MinUtteranceMillis)
	}
	if w.ContextWindowMillis < 0 {
		return fmt.Errorf("context_window_ms cannot be negative, got %d", w.ContextWindowMillis)
	}
	if w.MaxContextTokens < 1 {
		return fmt.Errorf("max_context_tokens must be at least 1, got %d", w.MaxContextTokens)
	}
	if w.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", w.Workers)
	}
	if w.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", w.QueueSize)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Enabled && s.Address == "" {
		return fmt.Errorf("address cannot be empty when the server is enabled")
	}
	return nil
}

func (e *EventLogConfig) Validate() error {
	if e.Enabled && e.Path == "" {
		return fmt.Errorf("path cannot be empty when the event log is enabled")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
}

// BufferSamples returns the per-speaker buffer capacity in interleaved
// samples. Validation guarantees it holds a whole number of frames.
func (a *AudioConfig) BufferSamples() int {
	return a.SampleRate * a.BufferSeconds * a.Channels
}

// SilenceTimeout returns the transport silence watchdog interval.
func (d *DiscordConfig) SilenceTimeout() time.Duration {
	return time.Duration(d.SilenceTimeoutMillis) * time.Millisecond
}

// Timeout returns the per-request engine timeout.
func (w *WhisperConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMillis) * time.Millisecond
}

// ContextWindow returns the carryover window as a duration.
func (w *WhisperConfig) ContextWindow() time.Duration {
	return time.Duration(w.ContextWindowMillis) * time.Millisecond
}
