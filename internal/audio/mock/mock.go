// Package mock provides test doubles for the audio.Speaker and audio.Listener
// interfaces.
//
// Example:
//
//	l := &mock.Listener{Utterances: []string{"Hola", "Adiós"}}
//	s := &mock.Speaker{}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/guion/internal/audio"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	Text   string
	Source string
}

// Speaker is a mock implementation of audio.Speaker.
type Speaker struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned from every Speak call.
	SpeakErr error

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall

	// StopCount is the number of times Stop was called.
	StopCount int
}

var _ audio.Speaker = (*Speaker)(nil)

// Speak records the call and returns SpeakErr.
func (s *Speaker) Speak(_ context.Context, text, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Text: text, Source: source})
	return s.SpeakErr
}

// Stop records the call.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCount++
}

// Calls returns a copy of the recorded Speak calls.
func (s *Speaker) Calls() []SpeakCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpeakCall, len(s.SpeakCalls))
	copy(out, s.SpeakCalls)
	return out
}

// Listener is a mock implementation of audio.Listener that replays
// Utterances in order and then returns io.EOF.
type Listener struct {
	mu sync.Mutex

	// Utterances are returned one per Listen call.
	Utterances []string

	// Err, if non-nil, is returned once Utterances are exhausted instead of io.EOF.
	Err error

	next int
}

var _ audio.Listener = (*Listener)(nil)

// Listen returns the next utterance.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next >= len(l.Utterances) {
		if l.Err != nil {
			return "", l.Err
		}
		return "", io.EOF
	}
	u := l.Utterances[l.next]
	l.next++
	return u, nil
}
