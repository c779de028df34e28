package stream_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/guion/internal/stream"
)

func TestWords(t *testing.T) {
	t.Parallel()

	got := slices.Collect(stream.Words(context.Background(), "  ¡Hola!  ¿Qué   tal? ", 0))
	want := []string{"¡Hola! ", "¿Qué ", "tal?"}
	if !slices.Equal(got, want) {
		t.Errorf("Words = %q, want %q", got, want)
	}
}

func TestWords_Empty(t *testing.T) {
	t.Parallel()

	if got := slices.Collect(stream.Words(context.Background(), "   ", time.Second)); len(got) != 0 {
		t.Errorf("Words(blank) = %q, want no fragments", got)
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	text := "Tenemos tres cremas hidratantes"
	if got := stream.Collect(stream.Words(context.Background(), text, time.Millisecond)); got != text {
		t.Errorf("Collect = %q, want %q", got, text)
	}
}

func TestWords_EarlyStop(t *testing.T) {
	t.Parallel()

	var got []string
	for frag := range stream.Words(context.Background(), "uno dos tres cuatro", 0) {
		got = append(got, frag)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"uno ", "dos "}) {
		t.Errorf("got %q, want the first two fragments", got)
	}
}

func TestWords_DelaysBetweenWords(t *testing.T) {
	t.Parallel()

	const delay = 20 * time.Millisecond
	start := time.Now()
	n := len(slices.Collect(stream.Words(context.Background(), "a b c", delay)))
	elapsed := time.Since(start)

	if n != 3 {
		t.Fatalf("got %d fragments, want 3", n)
	}
	if elapsed < 2*delay {
		t.Errorf("elapsed %v, want at least %v for two delays", elapsed, 2*delay)
	}
}

func TestWords_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []string
	for frag := range stream.Words(ctx, "uno dos tres", time.Hour) {
		got = append(got, frag)
		cancel()
	}
	if !slices.Equal(got, []string{"uno "}) {
		t.Errorf("got %q, want only the first fragment", got)
	}
}
