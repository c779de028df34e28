// Package config provides the configuration schema and loader for guion.
package config

import "time"

// LogLevel controls log verbosity.
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

// LogFormat selects the slog handler used for output.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultLogLevel      = LogInfo
	DefaultLogFormat     = LogFormatText
	DefaultWatchInterval = 2 * time.Second
	DefaultThreshold     = 60
	DefaultVariantFloor  = 1
)

// Config is the root configuration structure for guion.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Script   ScriptConfig   `yaml:"script"`
	Player   PlayerConfig   `yaml:"player"`
	Shell    ShellConfig    `yaml:"shell"`
	Feedback FeedbackConfig `yaml:"feedback"`
}

// ServerConfig holds logging settings and the optional ops listener.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log lines.
	LogFormat LogFormat `yaml:"log_format"`

	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the ops server.
	ListenAddr string `yaml:"listen_addr"`
}

// ScriptConfig locates the conversation script.
type ScriptConfig struct {
	// Path is the JSON or YAML script file. Required.
	Path string `yaml:"path"`

	// Watch reloads the script when the file changes on disk.
	Watch bool `yaml:"watch"`

	// WatchInterval is the polling period used when Watch is set.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// PlayerConfig tunes input matching.
type PlayerConfig struct {
	// Threshold is the minimum similarity (1..100) for an utterance to count
	// as the expected line.
	Threshold int `yaml:"threshold"`

	// VariantFloor is the minimum fuzzy score (1..100) for a variant reply to
	// be preferred over the step default.
	VariantFloor int `yaml:"variant_floor"`
}

// ShellConfig controls the interactive terminal host.
type ShellConfig struct {
	// WordDelay is the pause between words when replies are typed out.
	WordDelay time.Duration `yaml:"word_delay"`

	// Speak voices replies. Without commands the replies are only logged.
	Speak bool `yaml:"speak"`

	// SayCommand is the argv prefix of a text-to-speech program; the reply
	// text is appended (e.g. ["espeak-ng", "-v", "es"]).
	SayCommand []string `yaml:"say_command"`

	// PlayCommand is the argv prefix of an audio player; a step's audio file
	// is appended (e.g. ["mpg123", "-q"]).
	PlayCommand []string `yaml:"play_command"`
}

// FeedbackConfig controls session reports.
type FeedbackConfig struct {
	// Path is the JSON-lines file receiving one report per session. Empty
	// disables reports.
	Path string `yaml:"path"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = DefaultLogFormat
	}
	if c.Script.WatchInterval == 0 {
		c.Script.WatchInterval = DefaultWatchInterval
	}
	if c.Player.Threshold == 0 {
		c.Player.Threshold = DefaultThreshold
	}
	if c.Player.VariantFloor == 0 {
		c.Player.VariantFloor = DefaultVariantFloor
	}
}
