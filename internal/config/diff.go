package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked individually;
// everything else is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PlayerChanged bool
	NewPlayer     PlayerConfig

	ScriptPathChanged bool
	NewScriptPath     string

	// RestartRequired names changed settings that only take effect after a
	// restart, using their YAML paths.
	RestartRequired []string
}

// IsZero reports whether d records no change at all.
func (d ConfigDiff) IsZero() bool {
	return !d.LogLevelChanged && !d.PlayerChanged && !d.ScriptPathChanged && len(d.RestartRequired) == 0
}

// Diff returns what changed between old and new.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Player != new.Player {
		d.PlayerChanged = true
		d.NewPlayer = new.Player
	}
	if old.Script.Path != new.Script.Path {
		d.ScriptPathChanged = true
		d.NewScriptPath = new.Script.Path
	}

	restart := func(changed bool, key string) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart(old.Server.LogFormat != new.Server.LogFormat, "server.log_format")
	restart(old.Server.ListenAddr != new.Server.ListenAddr, "server.listen_addr")
	restart(old.Script.Watch != new.Script.Watch, "script.watch")
	restart(old.Script.WatchInterval != new.Script.WatchInterval, "script.watch_interval")
	restart(!shellEqual(old.Shell, new.Shell), "shell")
	restart(old.Feedback != new.Feedback, "feedback")

	return d
}

func shellEqual(a, b ShellConfig) bool {
	return a.WordDelay == b.WordDelay &&
		a.Speak == b.Speak &&
		slices.Equal(a.SayCommand, b.SayCommand) &&
		slices.Equal(a.PlayCommand, b.PlayCommand)
}
