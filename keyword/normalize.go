// Package keyword implements the text analysis half of the guard pipeline:
// normalization, weighted keyword scoring, negation guarding, and content
// signatures for repeat detection.
//
// All functions here are pure with respect to their (text, rules) input and
// safe for concurrent use.
package keyword

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/krchat/sentinel/ruleset"
)

// Normalized is the canonical form of a piece of text. Display preserves
// separators for position-sensitive checks (negation windows); Condensed
// strips everything outside letters/digits to defeat spacing-based evasion.
type Normalized struct {
	Display   string
	Condensed string
}

// Normalize applies unicode compatibility folding, homoglyph substitution,
// zero-width stripping, and case folding. Idempotent: normalizing the Display
// form again yields the same result.
func Normalize(text string, rules *ruleset.RuleSet) Normalized {
	s := norm.NFKC.String(text)
	if len(rules.Homoglyphs) > 0 {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if sub, ok := rules.Homoglyphs[string(r)]; ok {
				b.WriteString(sub)
			} else {
				b.WriteRune(r)
			}
		}
		s = b.String()
	}
	s = strings.Map(dropZeroWidth, s)
	s = strings.ToLower(s)
	return Normalized{Display: s, Condensed: condense(s)}
}

func dropZeroWidth(r rune) rune {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return -1
	}
	return r
}

// condense keeps only digits, latin letters, and hangul syllables. Runs of
// separators collapse to nothing, not to a single separator.
func condense(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '가' && r <= '힣':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
