// Package config provides the configuration schema, loader, and provider
// registry for the Periodix server.
package config

import (
	"time"

	"github.com/MrWong99/periodix/internal/resilience"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is loaded from YAML with
// [Load] or [LoadFromReader]; zero values are replaced by the defaults
// documented per field.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Narration NarrationConfig `yaml:"narration"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Game      GameConfig      `yaml:"game"`
	Reveal    RevealConfig    `yaml:"reveal"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatasetConfig selects the element dataset.
type DatasetConfig struct {
	// Path overrides the embedded dataset with a YAML file on disk.
	Path string `yaml:"path"`
}

// NarrationConfig configures speech generation.
type NarrationConfig struct {
	// Endpoint, when set, makes UI sessions fetch narration from this remote
	// URL instead of the in-process providers.
	Endpoint string `yaml:"endpoint"`

	// Providers lists speech backends in failover order. Each Name selects
	// a factory registered in the [Registry].
	Providers []ProviderEntry `yaml:"providers"`

	// CircuitBreaker tunes the breaker placed in front of every provider.
	CircuitBreaker resilience.BreakerConfig `yaml:"circuit_breaker"`
}

// ProviderEntry is the configuration block of one speech provider.
type ProviderEntry struct {
	// Name selects the registered provider implementation ("gemini",
	// "openai", "elevenlabs", "coqui").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. ${VAR} references are
	// expanded from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific speech model.
	Model string `yaml:"model"`

	// Voice is the provider-specific voice ID.
	Voice string `yaml:"voice"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// PlaybackConfig tunes the playback controller of each UI session.
type PlaybackConfig struct {
	// FrameDuration is the length of one streamed frame. Default: 20ms.
	FrameDuration time.Duration `yaml:"frame_duration"`

	// Realtime paces frames at playback speed. Default: true.
	Realtime *bool `yaml:"realtime"`
}

// IsRealtime returns the effective Realtime setting.
func (p PlaybackConfig) IsRealtime() bool {
	return p.Realtime == nil || *p.Realtime
}

// QuizConfig shapes the quiz.
type QuizConfig struct {
	// Questions per quiz. Default: 10.
	Questions int `yaml:"questions"`

	// Options per question. Default: 4.
	Options int `yaml:"options"`
}

// GameConfig shapes the game.
type GameConfig struct {
	// DefaultOptions is the difficulty used when a client does not pick one.
	// Must be 2, 4 or 6. Default: 4.
	DefaultOptions int `yaml:"default_options"`

	// NextDelay is the pause between feedback and the next question.
	// Default: 1.5s.
	NextDelay time.Duration `yaml:"next_delay"`
}

// RevealConfig tunes the electron reveal animation.
type RevealConfig struct {
	// Interval between two revealed electrons. Default: 50ms.
	Interval time.Duration `yaml:"interval"`
}
