package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/guion/internal/audio/mock"
)

func TestFallbackGroup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		failing    map[string]error
		wantCalled []string
		wantErr    error
	}{
		{
			name:       "primary succeeds",
			wantCalled: []string{"primary"},
		},
		{
			name:       "primary fails, fallback succeeds",
			failing:    map[string]error{"primary": errTest},
			wantCalled: []string{"primary", "secondary"},
		},
		{
			name:       "all fail",
			failing:    map[string]error{"primary": errTest, "secondary": errTest},
			wantCalled: []string{"primary", "secondary"},
			wantErr:    ErrAllFailed,
		},
		{
			name:       "cancellation stops the chain",
			failing:    map[string]error{"primary": context.Canceled},
			wantCalled: []string{"primary"},
			wantErr:    context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewFallbackGroup("primary", "primary", CircuitBreakerConfig{MaxFailures: 3})
			g.Add("secondary", "secondary")

			var called []string
			err := g.Do(func(v string) error {
				called = append(called, v)
				return tt.failing[v]
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(called) != len(tt.wantCalled) {
				t.Fatalf("called = %v, want %v", called, tt.wantCalled)
			}
			for i := range called {
				if called[i] != tt.wantCalled[i] {
					t.Errorf("called = %v, want %v", called, tt.wantCalled)
				}
			}
		})
	}
}

func TestFallbackGroup_AllFailWrapsLastError(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("only", 1, CircuitBreakerConfig{})
	err := g.Do(func(int) error { return errTest })
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Errorf("err = %v, want both ErrAllFailed and the cause", err)
	}
}

func TestFallbackGroup_OpenPrimaryIsSkipped(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("primary", "primary", CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	g.Add("secondary", "secondary")

	_ = g.Do(func(v string) error {
		if v == "primary" {
			return errTest
		}
		return nil
	})
	if s, _ := g.State("primary"); s != StateOpen {
		t.Fatalf("primary state = %v, want open", s)
	}

	var called []string
	if err := g.Do(func(v string) error { called = append(called, v); return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(called) != 1 || called[0] != "secondary" {
		t.Errorf("called = %v, want only secondary", called)
	}
	if _, ok := g.State("nope"); ok {
		t.Error("State(nope) reported ok")
	}
}

func TestFallbackSpeaker(t *testing.T) {
	t.Parallel()
	primary := &mock.Speaker{SpeakErr: errTest}
	backup := &mock.Speaker{}
	sp := NewFallbackSpeaker("command", primary, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	sp.Add("log", backup)

	for range 2 {
		if err := sp.Speak(context.Background(), "Hola", "hola.mp3"); err != nil {
			t.Fatalf("Speak: %v", err)
		}
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1 (breaker opens after first failure)", got)
	}
	calls := backup.Calls()
	if len(calls) != 2 || calls[0].Text != "Hola" || calls[0].Source != "hola.mp3" {
		t.Errorf("backup calls = %+v", calls)
	}
	if s, _ := sp.State("command"); s != StateOpen {
		t.Errorf("command state = %v, want open", s)
	}

	sp.Stop()
	if primary.StopCount != 1 || backup.StopCount != 1 {
		t.Errorf("Stop counts = %d/%d, want 1/1", primary.StopCount, backup.StopCount)
	}
}
