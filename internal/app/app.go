// Package app wires the guion subsystems into a running application.
//
// The App struct owns the full lifecycle: New loads the script and builds
// the player, shell, script watcher and ops server, Run drives them until the
// conversation ends or ctx is cancelled, and Shutdown tears everything down.
//
// For testing, inject doubles via functional options (WithListener,
// WithOutput, WithSpeaker, ...). When an option is not provided, New builds
// the terminal defaults from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/guion/internal/audio"
	"github.com/MrWong99/guion/internal/config"
	"github.com/MrWong99/guion/internal/feedback"
	"github.com/MrWong99/guion/internal/health"
	"github.com/MrWong99/guion/internal/observe"
	"github.com/MrWong99/guion/internal/player"
	"github.com/MrWong99/guion/internal/resilience"
	"github.com/MrWong99/guion/internal/script"
	"github.com/MrWong99/guion/internal/shell"
)

// opsShutdownTimeout bounds the graceful stop of the ops HTTP server.
const opsShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes for one conversation host.
type App struct {
	cfg *config.Config

	// Injectable collaborators; defaults are filled in by New.
	level      *slog.LevelVar
	metrics    *observe.Metrics
	listener   audio.Listener
	out        io.Writer
	speaker    audio.Speaker
	dispatcher shell.Dispatcher

	// Subsystems, initialised in New and torn down in Shutdown.
	player  *player.Player
	shell   *shell.Shell
	watcher *script.Watcher
	ops     *http.Server
	opsMux  *http.ServeMux
	reports *feedback.FileStore

	// scriptPath is the script file currently in play. Reloads from any
	// other path are ignored.
	scriptPath atomic.Pointer[string]

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithListener replaces the stdin line listener.
func WithListener(l audio.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithOutput replaces stdout as the shell's output.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithSpeaker voices replies through s regardless of shell.speak.
func WithSpeaker(s audio.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithDispatcher replaces the logging trigger dispatcher.
func WithDispatcher(d shell.Dispatcher) Option {
	return func(a *App) { a.dispatcher = d }
}

// WithMetrics records playback metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets configuration reloads adjust the log level through v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New loads the configured script and builds every subsystem. It does not
// start any goroutine; call [App.Run] for that.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.listener == nil {
		a.listener = audio.NewLineListener(os.Stdin)
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.speaker == nil && cfg.Shell.Speak {
		a.speaker = newSpeaker(cfg.Shell)
	}

	// ── 1. Player + script ───────────────────────────────────────────────
	a.player = player.New(
		player.WithThreshold(cfg.Player.Threshold),
		player.WithVariantFloor(cfg.Player.VariantFloor),
		player.WithMetrics(a.metrics),
	)
	sc, err := script.LoadFile(cfg.Script.Path)
	if err != nil {
		return nil, fmt.Errorf("app: load script: %w", err)
	}
	path := cfg.Script.Path
	a.scriptPath.Store(&path)
	a.player.Load(sc)

	if cfg.Feedback.Path != "" {
		a.reports = feedback.NewFileStore(cfg.Feedback.Path)
	}

	// ── 2. Script watcher ────────────────────────────────────────────────
	if cfg.Script.Watch {
		w, err := script.NewWatcher(path, a.scriptChanged(path), script.WithInterval(cfg.Script.WatchInterval))
		if err != nil {
			return nil, fmt.Errorf("app: watch script: %w", err)
		}
		a.watcher = w
	}

	// ── 3. Shell ─────────────────────────────────────────────────────────
	shellOpts := []shell.Option{
		shell.WithWordDelay(cfg.Shell.WordDelay),
		shell.WithDispatcher(a.dispatcher),
	}
	if a.speaker != nil {
		shellOpts = append(shellOpts, shell.WithSpeaker(a.speaker))
	}
	a.shell = shell.New(a.player, a.listener, a.out, shellOpts...)

	// ── 4. Ops server ────────────────────────────────────────────────────
	a.opsMux = http.NewServeMux()
	a.opsMux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		[]health.Checker{health.ScriptLoaded(a.player)},
		health.WithSession(a.player),
	).Register(a.opsMux)
	if cfg.Server.ListenAddr != "" {
		a.ops = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           otelhttp.NewHandler(a.opsMux, "guion.ops"),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	slog.Info("app: ready",
		"script", sc.ID,
		"steps", sc.Len(),
		"watch", cfg.Script.Watch,
		"ops", cfg.Server.ListenAddr,
	)
	return a, nil
}

// Player returns the conversation player.
func (a *App) Player() *player.Player { return a.player }

// OpsHandler returns the ops routes (/metrics, /healthz, /readyz, /session)
// without the listener, whether or not server.listen_addr is set.
func (a *App) OpsHandler() http.Handler { return a.opsMux }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run plays the conversation and blocks until the shell finishes or ctx is
// cancelled. The script watcher and ops server run alongside the shell and
// are stopped when Run returns. A failing ops server aborts the run.
//
// The shell is not waited for after cancellation: a listener blocked on a
// terminal read cannot be interrupted.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx.Done()) })
	}
	if a.ops != nil {
		g.Go(func() error {
			slog.Info("app: ops server listening", "addr", a.ops.Addr)
			if err := a.ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
			defer scancel()
			return a.ops.Shutdown(sctx)
		})
	}

	shellDone := make(chan error, 1)
	go func() { shellDone <- a.shell.Run(gctx) }()

	var shellErr error
	select {
	case shellErr = <-shellDone:
		if errors.Is(shellErr, context.Canceled) {
			shellErr = nil
		}
	case <-gctx.Done():
	}
	cancel()

	if err := errors.Join(shellErr, g.Wait()); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// scriptChanged returns the watcher callback for the script at path.
func (a *App) scriptChanged(path string) func(*script.Script) {
	return func(s *script.Script) {
		if cur := a.scriptPath.Load(); cur == nil || *cur != path {
			slog.Debug("app: ignoring reload of inactive script", "path", path)
			return
		}
		a.saveReport(feedback.ReasonReload)
		a.player.Load(s)
		slog.Info("app: script reloaded, conversation restarted", "script", s.ID, "path", path)
	}
}

// ApplyConfig applies the hot-reloadable differences between old and new:
// log level, player tuning and the script path. Other changes are logged as
// needing a restart. It is meant as a [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.IsZero() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.PlayerChanged {
		a.player.Tune(d.NewPlayer.Threshold, d.NewPlayer.VariantFloor)
		slog.Info("app: player retuned", "threshold", d.NewPlayer.Threshold, "variant_floor", d.NewPlayer.VariantFloor)
	}
	if d.ScriptPathChanged {
		sc, err := script.LoadFile(d.NewScriptPath)
		if err != nil {
			slog.Warn("app: keeping current script, new one failed to load", "path", d.NewScriptPath, "err", err)
		} else {
			path := d.NewScriptPath
			a.scriptPath.Store(&path)
			a.saveReport(feedback.ReasonReload)
			a.player.Load(sc)
			slog.Info("app: switched script", "script", sc.ID, "path", path)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: some configuration changes need a restart", "keys", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the watcher and ends the live session so it is counted as
// completed. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.Stop()
		}
		if sum, ok := a.player.Summary(); ok {
			slog.Info("app: session ended",
				"script", sum.ScriptID,
				"session", sum.SessionID,
				"steps_completed", sum.StepsCompleted,
				"total_steps", sum.TotalSteps,
				"deviations", sum.Deviations,
				"duration_s", sum.DurationSeconds,
			)
		}
		a.saveReport(feedback.ReasonShutdown)
		a.player.Unload()
		if a.speaker != nil {
			a.speaker.Stop()
		}
		err = ctx.Err()
	})
	return err
}

// saveReport appends the live session's report, if reports are enabled and
// a session exists. Failures are logged.
func (a *App) saveReport(reason string) {
	if a.reports == nil {
		return
	}
	sess, ok := a.player.Session()
	if !ok {
		return
	}
	sum, ok := a.player.Summary()
	if !ok {
		return
	}
	if err := a.reports.Save(feedback.NewReport(reason, sess, sum, time.Now())); err != nil {
		slog.Warn("app: failed to save session report", "err", err)
	}
}

// newSpeaker voices replies through the configured commands, falling back
// to logging them while the commands keep failing.
func newSpeaker(cfg config.ShellConfig) audio.Speaker {
	if len(cfg.SayCommand) == 0 && len(cfg.PlayCommand) == 0 {
		return audio.NewLogSpeaker()
	}
	sp := resilience.NewFallbackSpeaker("command",
		audio.NewCommandSpeaker(cfg.SayCommand, cfg.PlayCommand),
		resilience.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute},
	)
	sp.Add("log", audio.NewLogSpeaker())
	return sp
}

// SlogLevel maps a configured level to its slog equivalent.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
