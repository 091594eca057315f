package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/periodix/pkg/quiz"
)

// ValidProviderNames lists the built-in speech provider names. [Validate]
// warns about names outside this list.
var ValidProviderNames = []string{"gemini", "openai", "elevenlabs", "coqui"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in provider secrets, applies defaults, and validates the
// result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	for i := range cfg.Narration.Providers {
		p := &cfg.Narration.Providers[i]
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Playback.FrameDuration == 0 {
		c.Playback.FrameDuration = 20 * time.Millisecond
	}
	if c.Quiz.Questions == 0 {
		c.Quiz.Questions = quiz.DefaultQuizQuestions
	}
	if c.Quiz.Options == 0 {
		c.Quiz.Options = quiz.DefaultQuizOptions
	}
	if c.Game.DefaultOptions == 0 {
		c.Game.DefaultOptions = 4
	}
	if c.Game.NextDelay == 0 {
		c.Game.NextDelay = 1500 * time.Millisecond
	}
	if c.Reveal.Interval == 0 {
		c.Reveal.Interval = 50 * time.Millisecond
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	if ep := cfg.Narration.Endpoint; ep != "" {
		if u, err := url.Parse(ep); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("narration.endpoint %q must be an absolute http(s) URL", ep))
		}
	}
	seen := make(map[string]int, len(cfg.Narration.Providers))
	for i, p := range cfg.Narration.Providers {
		prefix := fmt.Sprintf("narration.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of narration.providers[%d]", prefix, p.Name, prev))
		}
		seen[p.Name] = i
		if !slices.Contains(ValidProviderNames, p.Name) {
			slog.Warn("unknown speech provider name; may be a typo or a third-party provider",
				"name", p.Name,
				"known", ValidProviderNames,
			)
		}
	}
	if len(cfg.Narration.Providers) == 0 && cfg.Narration.Endpoint == "" {
		slog.Warn("no speech provider configured; narration requests will fail")
	}
	cb := cfg.Narration.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("narration.circuit_breaker values must not be negative"))
	}

	if cfg.Playback.FrameDuration < 0 {
		errs = append(errs, fmt.Errorf("playback.frame_duration %s must not be negative", cfg.Playback.FrameDuration))
	}

	if cfg.Quiz.Questions < 0 {
		errs = append(errs, fmt.Errorf("quiz.questions %d must be positive", cfg.Quiz.Questions))
	}
	if cfg.Quiz.Options != 0 && cfg.Quiz.Options < 2 {
		errs = append(errs, fmt.Errorf("quiz.options %d must be at least 2", cfg.Quiz.Options))
	}
	if cfg.Game.DefaultOptions != 0 {
		if err := quiz.ValidateDifficulty(cfg.Game.DefaultOptions); err != nil {
			errs = append(errs, fmt.Errorf("game.default_options: %w", err))
		}
	}
	if cfg.Game.NextDelay < 0 {
		errs = append(errs, fmt.Errorf("game.next_delay %s must not be negative", cfg.Game.NextDelay))
	}
	if cfg.Reveal.Interval < 0 {
		errs = append(errs, fmt.Errorf("reveal.interval %s must not be negative", cfg.Reveal.Interval))
	}

	return errors.Join(errs...)
}
