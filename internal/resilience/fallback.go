package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// was skipped by an open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

type entry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary backend and ordered fallbacks, each guarded
// by its own [CircuitBreaker].
type FallbackGroup[T any] struct {
	cfg     CircuitBreakerConfig
	entries []entry[T]
}

// NewFallbackGroup creates a group with primary as its first entry. cfg is
// the template for every entry's breaker; its Name is replaced by the
// entry name.
func NewFallbackGroup[T any](name string, primary T, cfg CircuitBreakerConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.Add(name, primary)
	return g
}

// Add appends a fallback tried after all earlier entries.
func (g *FallbackGroup[T]) Add(name string, v T) {
	cfg := g.cfg
	cfg.Name = name
	g.entries = append(g.entries, entry[T]{name: name, value: v, breaker: NewCircuitBreaker(cfg)})
}

// Do calls fn with each entry in order until one succeeds. A context
// cancellation error is returned at once without trying further entries.
// When every entry fails the result wraps both [ErrAllFailed] and the last
// error.
func (g *FallbackGroup[T]) Do(fn func(T) error) error {
	var last error
	for i := range g.entries {
		e := &g.entries[i]
		err := e.breaker.Execute(func() error { return fn(e.value) })
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: skipping backend with open circuit", "backend", e.name)
		default:
			slog.Warn("resilience: backend failed, trying next", "backend", e.name, "err", err)
		}
		last = err
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, last)
}

// State reports the breaker state of the named entry. ok is false for
// unknown names.
func (g *FallbackGroup[T]) State(name string) (s State, ok bool) {
	for i := range g.entries {
		if g.entries[i].name == name {
			return g.entries[i].breaker.State(), true
		}
	}
	return 0, false
}
