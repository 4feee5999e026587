package keyword

import (
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/krchat/sentinel/ruleset"
)

// signatures longer than this are truncated; near-identical spam only needs a
// stable prefix to collide on
const maxSignatureRunes = 256

// Signature derives the repeat/cross-post tracking key for a piece of text:
// the condensed form, truncated to a bounded length.
func Signature(text string, rules *ruleset.RuleSet) string {
	return runePrefix(Normalize(text, rules).Condensed, maxSignatureRunes)
}

// HashOfString returns a fast, compact hash of a string.
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}
