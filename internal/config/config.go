// Package config loads the application configuration from YAML with
// environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProvider is returned when coach.provider names a backend we
// do not ship.
var ErrUnknownProvider = errors.New("config: unknown provider")

// Audio configures capture.
type Audio struct {
	// SampleRate in Hz for capture and transcription.
	SampleRate int `yaml:"sample_rate"`

	// Loopback additionally captures system audio for the remote side.
	Loopback bool `yaml:"loopback"`
}

// BusConfig tunes the event bus.
type BusConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`

	// Overflow is one of "drop-oldest", "drop-newest", "backpressure".
	Overflow string `yaml:"overflow"`

	// BackpressureTimeout bounds a blocked publish when Overflow is
	// "backpressure". Zero keeps the built-in default.
	BackpressureTimeout time.Duration `yaml:"backpressure_timeout"`
}

// ASR configures transcription.
type ASR struct {
	// Window is how much audio accumulates before a transcription call.
	Window time.Duration `yaml:"window"`

	// Model overrides the transcription model.
	Model string `yaml:"model"`
}

// Coach configures the suggestion and summary provider.
type Coach struct {
	// Provider is "anthropic", "openai" or "fake".
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`
}

// Objection configures detection.
type Objection struct {
	// RulesFile points to an optional Lua script adding custom
	// detection rules.
	RulesFile string `yaml:"rules_file"`
}

// Storage configures persistence.
type Storage struct {
	// Path of the SQLite database file.
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Audio     Audio     `yaml:"audio"`
	Bus       BusConfig `yaml:"bus"`
	ASR       ASR       `yaml:"asr"`
	Coach     Coach     `yaml:"coach"`
	Objection Objection `yaml:"objection"`
	Storage   Storage   `yaml:"storage"`

	// Headless disables the terminal dashboard.
	Headless bool `yaml:"headless"`

	// LogLevel is a zerolog level name. Empty means "info".
	LogLevel string `yaml:"log_level"`

	// LogFile receives structured logs. Empty logs to stderr, which is
	// only usable in headless mode.
	LogFile string `yaml:"log_file"`

	// API keys come from the environment, never from the file.
	OpenAIKey    string `yaml:"-"`
	AnthropicKey string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Audio: Audio{
			SampleRate: 16000,
			Loopback:   true,
		},
		Bus: BusConfig{
			QueueCapacity: 1024,
			Overflow:      "drop-oldest",
		},
		ASR: ASR{
			Window: 3 * time.Second,
		},
		Coach: Coach{
			Provider: "anthropic",
		},
		Storage: Storage{
			Path: defaultDBPath(),
		},
		LogLevel: "info",
	}
}

// Load reads path, overlays it on the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to defaults.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Bus.QueueCapacity <= 0 {
		return fmt.Errorf("config: queue_capacity must be positive, got %d", c.Bus.QueueCapacity)
	}
	switch c.Bus.Overflow {
	case "drop-oldest", "drop-newest", "backpressure":
	default:
		return fmt.Errorf("config: overflow must be drop-oldest, drop-newest or backpressure, got %q", c.Bus.Overflow)
	}
	if c.ASR.Window <= 0 {
		return fmt.Errorf("config: asr window must be positive, got %s", c.ASR.Window)
	}
	switch c.Coach.Provider {
	case "anthropic", "openai", "fake":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Coach.Provider)
	}
	if c.Storage.Path == "" {
		return errors.New("config: storage path must not be empty")
	}
	return nil
}

// defaultDBPath places the database under the user config directory,
// falling back to the working directory.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pitchai.db"
	}
	return filepath.Join(dir, "pitchai", "pitchai.db")
}
