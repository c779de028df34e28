// Command guion plays a scripted conversation in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/guion/internal/app"
	"github.com/MrWong99/guion/internal/config"
	"github.com/MrWong99/guion/internal/observe"
	"github.com/MrWong99/guion/internal/script"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	scriptPath := flag.String("script", "", "script file to play, overriding script.path")
	check := flag.Bool("check", false, "validate and lint the script, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath, *scriptPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "guion: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "guion: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(os.Stderr, cfg.Server.LogFormat, level))

	if *check {
		return checkScript(os.Stdout, cfg.Script.Path)
	}

	slog.Info("guion starting",
		"version", version,
		"config", *configPath,
		"script", cfg.Script.Path,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	application, err := app.New(cfg,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Only possible when the config came from a file and watching is enabled.
	if cfg.Script.Watch && *scriptPath == "" {
		cw, err := config.NewWatcher(*configPath, application.ApplyConfig, config.WithInterval(cfg.Script.WatchInterval))
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer cw.Stop()
		}
	}

	exit := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exit = 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("adiós")
	return exit
}

// loadConfig reads the config at path. When scriptOverride is set and the
// file does not exist, defaults are used so a script can be played without
// any config file.
func loadConfig(path, scriptOverride string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if scriptOverride == "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	if scriptOverride != "" {
		cfg.Script.Path = scriptOverride
	}
	return cfg, config.Validate(cfg)
}

// checkScript loads the script at path and prints every lint problem.
// It returns 0 only for a script that loads without problems.
func checkScript(w io.Writer, path string) int {
	sc, err := script.LoadFile(path)
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return 1
	}
	problems := script.Lint(sc)
	for _, p := range problems {
		fmt.Fprintf(w, "%s: %s\n", path, p)
	}
	if len(problems) > 0 {
		return 1
	}
	fmt.Fprintf(w, "%s: ok (%d steps)\n", path, sc.Len())
	return 0
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
