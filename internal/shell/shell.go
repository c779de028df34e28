// Package shell is a minimal interactive host for the script player. It
// reads utterances from an [audio.Listener], plays them through a
// [player.Player], types the replies out word by word, optionally voices
// them, and hands step triggers and actions to a [Dispatcher].
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/guion/internal/audio"
	"github.com/MrWong99/guion/internal/observe"
	"github.com/MrWong99/guion/internal/player"
	"github.com/MrWong99/guion/internal/stream"
)

// ErrNoScript is returned by [Shell.Run] when the player has nothing loaded.
var ErrNoScript = errors.New("shell: no script loaded")

// Dispatcher executes the opaque trigger and actions attached to a step.
type Dispatcher interface {
	Dispatch(ctx context.Context, trigger any, actions []any) error
}

// DispatcherFunc adapts a function to [Dispatcher].
type DispatcherFunc func(ctx context.Context, trigger any, actions []any) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, trigger any, actions []any) error {
	return f(ctx, trigger, actions)
}

// LogDispatcher logs triggers and actions instead of executing them.
type LogDispatcher struct{}

// Dispatch logs trigger and actions at info level.
func (LogDispatcher) Dispatch(ctx context.Context, trigger any, actions []any) error {
	observe.Logger(ctx).Info("shell: step side effects", "trigger", trigger, "actions", actions)
	return nil
}

// Option is a functional option for configuring a [Shell].
type Option func(*Shell)

// WithSpeaker voices every reply through sp.
func WithSpeaker(sp audio.Speaker) Option {
	return func(s *Shell) {
		s.speaker = sp
	}
}

// WithDispatcher replaces the default [LogDispatcher].
func WithDispatcher(d Dispatcher) Option {
	return func(s *Shell) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithWordDelay sets the pause between words when typing out replies.
// Default: 0 (replies are printed at once).
func WithWordDelay(d time.Duration) Option {
	return func(s *Shell) {
		s.wordDelay = d
	}
}

// Shell drives one player from one listener. It is not safe for concurrent use.
type Shell struct {
	player     *player.Player
	listener   audio.Listener
	out        io.Writer
	speaker    audio.Speaker
	dispatcher Dispatcher
	wordDelay  time.Duration
}

// New returns a Shell writing to out.
func New(p *player.Player, l audio.Listener, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		player:     p,
		listener:   l,
		out:        out,
		dispatcher: LogDispatcher{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run plays the loaded script until it completes, the user types /salir,
// the listener reports io.EOF, or ctx is cancelled. Completion and /salir
// print a session summary. Only listener failures and cancellation are
// returned as errors.
func (s *Shell) Run(ctx context.Context) error {
	if !s.player.IsActive() {
		return ErrNoScript
	}

	s.player.OnResponse(func(_ string, trigger any, actions []any) {
		if trigger == nil && len(actions) == 0 {
			return
		}
		if err := s.dispatcher.Dispatch(ctx, trigger, actions); err != nil {
			slog.Warn("shell: dispatch failed", "trigger", trigger, "err", err)
		}
	})
	defer s.player.OnResponse(nil)

	s.playUngated(ctx)

	for {
		if s.player.IsComplete() {
			s.printSummary()
			return nil
		}
		fmt.Fprint(s.out, "> ")

		line, err := s.listener.Listen(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				s.printSummary()
				return nil
			}
			continue
		}
		if line == "" {
			continue
		}
		s.turn(ctx, line)
		s.playUngated(ctx)
	}
}

// playUngated plays steps that expect no user input, such as an opening
// greeting, without waiting for the user. It plays at most one pass over the
// script so that a loop of ungated steps cannot spin forever.
func (s *Shell) playUngated(ctx context.Context) {
	sc := s.player.Script()
	if sc == nil {
		return
	}
	for range sc.Len() {
		st := s.player.CurrentStep()
		if st == nil || st.UserInput != "" || ctx.Err() != nil {
			return
		}
		s.turn(ctx, "")
	}
}

func (s *Shell) turn(ctx context.Context, input string) {
	ctx, span := observe.StartSpan(ctx, "shell.turn")
	defer span.End()

	res := s.player.ProcessInput(input)
	span.SetAttributes(
		attribute.String("step_id", res.StepID),
		attribute.Bool("matched", res.Matched),
		attribute.Int("match_quality", res.MatchQuality),
		attribute.String("selection", string(res.Selection)),
	)
	observe.Logger(ctx).Debug("shell: turn played",
		"step", res.StepID,
		"matched", res.Matched,
		"match_quality", res.MatchQuality,
		"selection", res.Selection,
	)

	s.say(ctx, res.Response)
	if s.speaker != nil {
		if err := s.speaker.Speak(ctx, res.Response, res.AudioFile); err != nil {
			observe.Logger(ctx).Warn("shell: speak failed", "err", err)
		}
	}
}

// say types text out word by word.
func (s *Shell) say(ctx context.Context, text string) {
	for frag := range stream.Words(ctx, text, s.wordDelay) {
		fmt.Fprint(s.out, frag)
	}
	fmt.Fprintln(s.out)
}

// command runs a meta command and reports whether the shell should quit.
func (s *Shell) command(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/salir":
		return true
	case "/pista":
		if hint, ok := s.player.Hint(); ok {
			fmt.Fprintln(s.out, hint)
		} else {
			fmt.Fprintln(s.out, "No hay pista para este paso.")
		}
	case "/progreso":
		fmt.Fprintf(s.out, "Progreso: %d%%\n", s.player.Progress())
	case "/resumen":
		s.printSummary()
	case "/reiniciar":
		if s.speaker != nil {
			s.speaker.Stop()
		}
		s.player.Reset()
		fmt.Fprintln(s.out, "Conversación reiniciada.")
		s.playUngated(ctx)
	case "/saltar":
		if arg == "" {
			fmt.Fprintln(s.out, "Uso: /saltar <id>")
		} else if s.player.SkipToStep(arg) {
			fmt.Fprintf(s.out, "Saltando al paso %q.\n", arg)
			s.playUngated(ctx)
		} else {
			fmt.Fprintf(s.out, "No existe el paso %q.\n", arg)
		}
	default:
		fmt.Fprintf(s.out, "Comando desconocido: %s (prueba /pista, /progreso, /resumen, /reiniciar, /saltar <id>, /salir)\n", name)
	}
	return false
}

func (s *Shell) printSummary() {
	sum, ok := s.player.Summary()
	if !ok {
		return
	}
	fmt.Fprintf(s.out, "Resumen: %d/%d pasos, %d desviaciones, %d s, progreso %d%%\n",
		sum.StepsCompleted, sum.TotalSteps, sum.Deviations, sum.DurationSeconds, sum.Progress)
}
