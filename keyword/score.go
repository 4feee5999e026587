package keyword

import (
	"strings"

	"github.com/krchat/sentinel/ruleset"
)

// ScoreResult is the output of scoring one piece of text. Reasons is empty
// iff no category matched; Score is the sum of matched category weights.
// Hits preserves first-seen order and contains no duplicates.
type ScoreResult struct {
	Score   int
	Reasons []string
	Hits    []string
}

// Score applies all configured proximity pairs and flat keyword categories to
// the condensed form of text. Deterministic for identical (text, rules).
func Score(text string, rules *ruleset.RuleSet) ScoreResult {
	cond := Normalize(text, rules).Condensed

	var res ScoreResult
	for _, pair := range rules.ProximityPairs {
		ok, aHits, bHits := nearHits(cond, rules.Category(pair.A), rules.Category(pair.B), pair.Window)
		if !ok {
			continue
		}
		res.Score += pair.Weight
		res.Reasons = append(res.Reasons, pair.Label)
		res.Hits = append(res.Hits, aHits...)
		res.Hits = append(res.Hits, bHits...)
	}

	for _, cat := range rules.FlatCategories() {
		var matched []string
		for _, term := range rules.Category(cat) {
			if term != "" && strings.Contains(cond, term) {
				matched = append(matched, term)
			}
		}
		if len(matched) == 0 {
			continue
		}
		// category weight counts once no matter how many terms matched
		res.Score += rules.Weight(cat)
		res.Reasons = append(res.Reasons, cat)
		res.Hits = append(res.Hits, matched...)
	}

	res.Hits = DedupeStrings(res.Hits)
	return res
}

// HasAnyKeyword is the cheap prefilter: true if scoring produced any reason
// or hit at all.
func HasAnyKeyword(text string, rules *ruleset.RuleSet) bool {
	res := Score(text, rules)
	return len(res.Reasons) > 0 || len(res.Hits) > 0
}

// NickFlagged reports whether a display name contains any configured nickname
// flag term (matched against the condensed form).
func NickFlagged(displayName string, rules *ruleset.RuleSet) bool {
	cond := Normalize(displayName, rules).Condensed
	for _, flag := range rules.NickFlags {
		f := strings.ToLower(strings.TrimSpace(flag))
		if f == "" {
			continue
		}
		if strings.Contains(cond, f) {
			return true
		}
	}
	return false
}

// nearHits scans condensed text for each term of A; when found, the next
// window runes form a trailing zone checked for any term of B. The first
// matching B term per A term wins.
func nearHits(cond string, aTerms, bTerms []string, window int) (bool, []string, []string) {
	var aHits, bHits []string
	for _, a := range aTerms {
		if a == "" {
			continue
		}
		i := strings.Index(cond, a)
		if i < 0 {
			continue
		}
		zone := runePrefix(cond[i+len(a):], window)
		for _, b := range bTerms {
			if b != "" && strings.Contains(zone, b) {
				aHits = append(aHits, a)
				bHits = append(bHits, b)
				break
			}
		}
	}
	if len(aHits) > 0 && len(bHits) > 0 {
		return true, DedupeStrings(aHits), DedupeStrings(bHits)
	}
	return false, nil, nil
}

// DedupeStrings removes duplicates preserving first-seen order.
func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
