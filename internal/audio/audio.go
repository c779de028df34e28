// Package audio defines the speech collaborators a conversation host may use
// around the player: a [Speaker] that voices replies and a [Listener] that
// turns user speech (or typing) into utterance strings.
//
// Real capture and synthesis backends live outside this module. The package
// ships a line-oriented [Listener] for typed input and a [Speaker] that only
// logs, which is enough for terminals and tests.
package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Speaker voices assistant replies.
//
// Implementations must be safe for concurrent use; Stop may be called while
// Speak is in progress.
type Speaker interface {
	// Speak voices text, preferring the pre-recorded audio at source when it
	// is non-empty. It returns when playback finishes or ctx is cancelled.
	Speak(ctx context.Context, text, source string) error

	// Stop interrupts any playback in progress.
	Stop()
}

// Listener produces one user utterance per call.
type Listener interface {
	// Listen blocks until the next utterance is available. It returns io.EOF
	// once no more input will arrive.
	Listen(ctx context.Context) (string, error)
}

// LineListener reads one utterance per line from an io.Reader.
type LineListener struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

var _ Listener = (*LineListener)(nil)

// NewLineListener returns a [LineListener] reading from r.
func NewLineListener(r io.Reader) *LineListener {
	return &LineListener{scanner: bufio.NewScanner(r)}
}

// Listen returns the next line with surrounding whitespace removed.
//
// Cancelling ctx is only observed between lines; a blocked read on r is not
// interrupted.
func (l *LineListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", fmt.Errorf("audio: read line: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(l.scanner.Text()), nil
}

// LogSpeaker is a [Speaker] that logs what it would say.
type LogSpeaker struct{}

var _ Speaker = LogSpeaker{}

// NewLogSpeaker returns a [LogSpeaker].
func NewLogSpeaker() LogSpeaker {
	return LogSpeaker{}
}

// Speak logs text and source at info level.
func (LogSpeaker) Speak(ctx context.Context, text, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("audio: speak", "text", text, "source", source)
	return nil
}

// Stop does nothing.
func (LogSpeaker) Stop() {}
