// Package stream reveals reply text gradually, one word at a time, the way a
// chat UI "types" an assistant response.
package stream

import (
	"context"
	"iter"
	"strings"
	"time"
)

// Words returns a sequence yielding the words of text in order. Every word
// except the last keeps a trailing space so that concatenating the fragments
// rebuilds the text with single spaces. From the second word on, each
// fragment is delayed by delay.
//
// The sequence ends early when ctx is cancelled or the consumer stops
// ranging. Nothing needs to be cleaned up in either case.
func Words(ctx context.Context, text string, delay time.Duration) iter.Seq[string] {
	words := strings.Fields(text)
	return func(yield func(string) bool) {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for i, w := range words {
			if ctx.Err() != nil {
				return
			}
			if i > 0 && delay > 0 {
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			}
			if i < len(words)-1 {
				w += " "
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Collect drains seq into a single string.
func Collect(seq iter.Seq[string]) string {
	var b strings.Builder
	for frag := range seq {
		b.WriteString(frag)
	}
	return b.String()
}
