package ruleset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)

	raw := `{
		"keywords": {
			"profile": ["친추"],
			"visit": ["방문"],
			"reward": ["보상"]
		},
		"proximity_pairs": [
			{"a": "profile", "b": "visit", "label": "profile_visit", "strict": true}
		],
		"weights": {
			"profile_visit": 40,
			"reward": 30
		},
		"homoglyphs": {"0": "o"},
		"negations": ["주의"],
		"nick_flags": ["서포터즈"],
		"sensitivity": {
			"msg_threshold_normal": 60,
			"repeat_window_sec": 600,
			"near_window": 12
		}
	}`
	p := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(p, []byte(raw), 0644))

	rules, err := LoadFromFileJSON(p)
	require.NoError(t, err)

	assert.Equal([]string{"친추"}, rules.Category("profile"))
	assert.Equal(60, rules.NormalThreshold())
	assert.Equal(600*time.Second, rules.RepeatWindow())
	assert.Equal(12, rules.NearWindow())

	// pair weight and window filled from the shared tables
	require.Len(t, rules.ProximityPairs, 1)
	assert.Equal(40, rules.ProximityPairs[0].Weight)
	assert.Equal(12, rules.ProximityPairs[0].Window)
	assert.True(rules.ProximityPairs[0].Strict)

	// paired categories are not flat
	assert.Equal([]string{"reward"}, rules.FlatCategories())
}

func TestLoadFromFileJSONErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(err)

	p := filepath.Join(t.TempDir(), "bad.json")
	assert.NoError(os.WriteFile(p, []byte("{not json"), 0644))
	_, err = LoadFromFileJSON(p)
	assert.Error(err)
}

func TestSensitivityDefaults(t *testing.T) {
	assert := assert.New(t)

	var rules RuleSet
	assert.Equal(DefaultScoreThresholdNormal, rules.NormalThreshold())
	assert.Equal(time.Duration(DefaultRepeatWindowSec)*time.Second, rules.RepeatWindow())
	assert.Equal(DefaultNearWindow, rules.NearWindow())
}
