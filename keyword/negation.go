package keyword

import (
	"strings"
	"unicode/utf8"

	"github.com/krchat/sentinel/ruleset"
)

// NegationNearby reports whether any configured negation/warning term appears
// within a symmetric window of window runes around the first occurrence of any
// hit term in the normalized body. Used to exempt help-seeking or warning
// posts from enforcement.
func NegationNearby(text string, hits []string, rules *ruleset.RuleSet, window int) bool {
	if len(hits) == 0 || len(rules.Negations) == 0 {
		return false
	}

	body := Normalize(text, rules).Display
	bodyRunes := []rune(body)

	var negs []string
	for _, n := range rules.Negations {
		nn := Normalize(n, rules).Display
		if nn != "" {
			negs = append(negs, nn)
		}
	}
	if len(negs) == 0 {
		return false
	}

	for _, h := range hits {
		hn := Normalize(h, rules).Display
		if hn == "" {
			continue
		}
		i := strings.Index(body, hn)
		if i < 0 {
			continue
		}
		start := utf8.RuneCountInString(body[:i])
		hlen := utf8.RuneCountInString(hn)
		left := start - window
		if left < 0 {
			left = 0
		}
		right := start + hlen + window
		if right > len(bodyRunes) {
			right = len(bodyRunes)
		}
		zone := string(bodyRunes[left:right])
		for _, n := range negs {
			if strings.Contains(zone, n) {
				return true
			}
		}
	}
	return false
}
