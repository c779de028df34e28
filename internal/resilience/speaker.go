package resilience

import (
	"context"

	"github.com/MrWong99/guion/internal/audio"
)

// FallbackSpeaker is an [audio.Speaker] that voices each reply through the
// first healthy speaker in a [FallbackGroup].
type FallbackSpeaker struct {
	group    *FallbackGroup[audio.Speaker]
	speakers []audio.Speaker
}

var _ audio.Speaker = (*FallbackSpeaker)(nil)

// NewFallbackSpeaker creates a [FallbackSpeaker] preferring primary.
func NewFallbackSpeaker(name string, primary audio.Speaker, cfg CircuitBreakerConfig) *FallbackSpeaker {
	return &FallbackSpeaker{
		group:    NewFallbackGroup(name, primary, cfg),
		speakers: []audio.Speaker{primary},
	}
}

// Add registers a fallback speaker.
func (f *FallbackSpeaker) Add(name string, s audio.Speaker) {
	f.group.Add(name, s)
	f.speakers = append(f.speakers, s)
}

// Speak voices text through the first speaker that succeeds.
func (f *FallbackSpeaker) Speak(ctx context.Context, text, source string) error {
	return f.group.Do(func(s audio.Speaker) error {
		return s.Speak(ctx, text, source)
	})
}

// Stop interrupts every registered speaker.
func (f *FallbackSpeaker) Stop() {
	for _, s := range f.speakers {
		s.Stop()
	}
}

// State reports the breaker state of the named speaker.
func (f *FallbackSpeaker) State(name string) (State, bool) {
	return f.group.State(name)
}
