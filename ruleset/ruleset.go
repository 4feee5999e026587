// Package ruleset holds the immutable rule bundle consumed by the detection
// engine: keyword categories, proximity pairs, homoglyph substitutions,
// negation terms, nickname flag terms, and sensitivity thresholds.
//
// A RuleSet is loaded once at process start and referenced (never copied) by
// every detector call for the process lifetime. Hot-reload is out of scope.
package ruleset

import (
	"sort"
	"time"
)

// Default sensitivity values, used when the loaded rules omit them.
const (
	DefaultScoreThresholdNormal = 60
	DefaultRepeatWindowSec      = 600
	DefaultNearWindow           = 12
)

// ProximityPair is a combined-signal match: a term from category A followed by
// a term from category B within Window characters of condensed text.
type ProximityPair struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Window int    `json:"window"`
	Weight int    `json:"weight"`
	Label  string `json:"label"`
	// Strict pairs escalate the tier decision directly, independent of the
	// numeric score threshold.
	Strict bool `json:"strict"`
}

type Sensitivity struct {
	ScoreThresholdNormal int `json:"msg_threshold_normal"`
	RepeatWindowSec      int `json:"repeat_window_sec"`
	NearWindow           int `json:"near_window"`
}

type RuleSet struct {
	Keywords       map[string][]string `json:"keywords"`
	ProximityPairs []ProximityPair     `json:"proximity_pairs"`
	Weights        map[string]int      `json:"weights"`
	Homoglyphs     map[string]string   `json:"homoglyphs"`
	Negations      []string            `json:"negations"`
	NickFlags      []string            `json:"nick_flags"`
	Sensitivity    Sensitivity         `json:"sensitivity"`
}

func (r *RuleSet) Category(name string) []string {
	if r.Keywords == nil {
		return nil
	}
	return r.Keywords[name]
}

func (r *RuleSet) Weight(name string) int {
	if r.Weights == nil {
		return 0
	}
	return r.Weights[name]
}

func (r *RuleSet) NormalThreshold() int {
	if r.Sensitivity.ScoreThresholdNormal <= 0 {
		return DefaultScoreThresholdNormal
	}
	return r.Sensitivity.ScoreThresholdNormal
}

func (r *RuleSet) RepeatWindow() time.Duration {
	sec := r.Sensitivity.RepeatWindowSec
	if sec <= 0 {
		sec = DefaultRepeatWindowSec
	}
	return time.Duration(sec) * time.Second
}

func (r *RuleSet) NearWindow() int {
	if r.Sensitivity.NearWindow <= 0 {
		return DefaultNearWindow
	}
	return r.Sensitivity.NearWindow
}

// FlatCategories returns the keyword category names which are scored as flat
// term lists: every category with a configured weight that is not consumed by
// a proximity pair. Order is deterministic (sorted) so that scoring is
// reproducible for identical input.
func (r *RuleSet) FlatCategories() []string {
	paired := make(map[string]bool, len(r.ProximityPairs)*2)
	for _, p := range r.ProximityPairs {
		paired[p.A] = true
		paired[p.B] = true
	}
	var out []string
	for name := range r.Keywords {
		if paired[name] || r.Weight(name) <= 0 {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
