package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// ErrNoCommand is returned by [CommandSpeaker.Speak] when no configured
// command can voice the reply.
var ErrNoCommand = errors.New("audio: no speech command configured")

// CommandSpeaker voices replies by running local programs. A reply with an
// audio file runs PlayCommand with the file path appended; otherwise
// SayCommand runs with the text appended. Either may be empty.
type CommandSpeaker struct {
	say  []string
	play []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ Speaker = (*CommandSpeaker)(nil)

// NewCommandSpeaker returns a [CommandSpeaker]. say and play are argv
// prefixes such as {"espeak-ng", "-v", "es"} and {"mpg123", "-q"}.
func NewCommandSpeaker(say, play []string) *CommandSpeaker {
	return &CommandSpeaker{say: say, play: play}
}

// Speak runs the matching command and waits for it to exit. Starting a new
// reply interrupts the previous one.
func (s *CommandSpeaker) Speak(ctx context.Context, text, source string) error {
	argv := s.argv(text, source)
	if len(argv) == 0 {
		return ErrNoCommand
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("audio: %s: %w: %s", argv[0], err, bytes.TrimSpace(out))
	}
	return nil
}

// Stop kills the command voicing the current reply, if any.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *CommandSpeaker) argv(text, source string) []string {
	switch {
	case source != "" && len(s.play) > 0:
		return append(append([]string(nil), s.play...), source)
	case text != "" && len(s.say) > 0:
		return append(append([]string(nil), s.say...), text)
	}
	return nil
}
