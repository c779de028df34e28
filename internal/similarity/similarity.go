// Package similarity scores how closely two short Spanish utterances match.
//
// Scores are integers in [0, 100] derived from the Levenshtein edit distance
// between accent-folded, lowercased strings. On top of the raw score the
// package offers word-level containment checks that tolerate small typos and
// missing accents, which is what the script player uses to decide whether a
// user said "the expected thing".
//
// All functions are pure and safe for concurrent use.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum score, in percent, for two strings to be
// considered a match.
const DefaultThreshold = 60

// minWordLen is the shortest pattern word FuzzyContains will score. Shorter
// words ("y", "de", "sí") are too ambiguous to compare by edit distance.
const minWordLen = 3

// isCombiningDiacritic reports whether r lies in the Combining Diacritical
// Marks block (U+0300–U+036F).
func isCombiningDiacritic(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

var stripDiacritics = runes.Remove(runes.Predicate(isCombiningDiacritic))

// Normalize lowercases text, decomposes it (NFD), drops combining diacritical
// marks and trims surrounding whitespace. "Adiós" becomes "adios" and "niño"
// becomes "nino".
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, stripDiacritics)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.TrimSpace(folded)
}

// Similarity returns a 0–100 score for a and b after normalizing both.
// It returns 0 when either input is empty and 100 when the normalized forms
// are equal.
func Similarity(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return score(Normalize(a), Normalize(b))
}

// SimilarityRaw is [Similarity] without normalization. Callers that already
// normalized their inputs use it to avoid folding twice.
func SimilarityRaw(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return score(a, b)
}

func score(a, b string) int {
	if a == b {
		return 100
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}
	d := matchr.Levenshtein(a, b)
	return int(math.Round(100 * float64(maxLen-d) / float64(maxLen)))
}

// FuzzyContains reports whether text contains pattern, allowing for typos.
//
// Both strings are normalized. An exact substring hit wins immediately.
// Otherwise every pattern word of at least three letters must have some word
// in text scoring at least threshold against it; shorter pattern words are
// ignored. A pattern with no scorable words and no substring hit does not
// match. Empty inputs never match.
func FuzzyContains(text, pattern string, threshold int) bool {
	t := Normalize(text)
	p := Normalize(pattern)
	if t == "" || p == "" {
		return false
	}
	if strings.Contains(t, p) {
		return true
	}

	textWords := strings.Fields(t)
	scored := 0
	for _, pw := range strings.Fields(p) {
		if utf8.RuneCountInString(pw) < minWordLen {
			continue
		}
		scored++
		if !anyWordMatches(textWords, pw, threshold) {
			return false
		}
	}
	return scored > 0
}

func anyWordMatches(words []string, target string, threshold int) bool {
	for _, w := range words {
		if SimilarityRaw(w, target) >= threshold {
			return true
		}
	}
	return false
}

// MatchesExpectedInput reports whether input is close enough to expected:
// either the whole strings score at least threshold, or one fuzzily contains
// the other. Containment is checked both ways because either the user or the
// script line may be the longer phrase.
func MatchesExpectedInput(input, expected string, threshold int) bool {
	if Similarity(input, expected) >= threshold {
		return true
	}
	return FuzzyContains(input, expected, threshold) || FuzzyContains(expected, input, threshold)
}

// Match is a candidate selected by [FindBestMatch].
type Match struct {
	// Candidate is the matching string exactly as it appeared in the input slice.
	Candidate string

	// Index is the position of Candidate in the input slice.
	Index int

	// Score is the similarity between the input and Candidate.
	Score int
}

// FindBestMatch returns the candidate with the highest similarity to input,
// provided it scores at least threshold. On ties the earliest candidate wins.
// ok is false when input is empty, candidates is empty, or nothing clears
// the threshold.
func FindBestMatch(input string, candidates []string, threshold int) (best Match, ok bool) {
	if input == "" || len(candidates) == 0 {
		return Match{}, false
	}
	best.Score = -1
	for i, c := range candidates {
		s := Similarity(input, c)
		if s >= threshold && s > best.Score {
			best = Match{Candidate: c, Index: i, Score: s}
			ok = true
		}
	}
	if !ok {
		return Match{}, false
	}
	return best, true
}
