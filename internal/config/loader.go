package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It expects defaults to have been applied and returns a joined error
// listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Script
	if cfg.Script.Path == "" {
		errs = append(errs, errors.New("script.path is required"))
	}
	if cfg.Script.WatchInterval < 0 {
		errs = append(errs, fmt.Errorf("script.watch_interval %s must not be negative", cfg.Script.WatchInterval))
	}

	// Player
	if cfg.Player.Threshold < 1 || cfg.Player.Threshold > 100 {
		errs = append(errs, fmt.Errorf("player.threshold %d is out of range [1, 100]", cfg.Player.Threshold))
	}
	if cfg.Player.VariantFloor < 1 || cfg.Player.VariantFloor > 100 {
		errs = append(errs, fmt.Errorf("player.variant_floor %d is out of range [1, 100]", cfg.Player.VariantFloor))
	}

	// Shell
	if cfg.Shell.WordDelay < 0 {
		errs = append(errs, fmt.Errorf("shell.word_delay %s must not be negative", cfg.Shell.WordDelay))
	}
	if cfg.Shell.WordDelay > 0 && cfg.Shell.WordDelay < 10*time.Millisecond {
		slog.Warn("config: shell.word_delay is very short; replies will look instantaneous", "word_delay", cfg.Shell.WordDelay)
	}
	if !cfg.Shell.Speak && (len(cfg.Shell.SayCommand) > 0 || len(cfg.Shell.PlayCommand) > 0) {
		slog.Warn("config: shell speech commands are set but shell.speak is false; they will not run")
	}

	return errors.Join(errs...)
}
