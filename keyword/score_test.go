package keyword

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestScoreProximityPair(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	res := Score("친추 받고 방문 보상 받자", rules)
	assert.Contains(res.Reasons, "profile_visit")
	assert.Contains(res.Reasons, "reward")
	assert.Equal(70, res.Score)
	assert.Contains(res.Hits, "친추")
	assert.Contains(res.Hits, "방문")
	assert.Contains(res.Hits, "보상")
}

func TestScorePairWindow(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()
	rules.ProximityPairs[0].Window = 3

	// B-term beyond the trailing window does not pair
	res := Score("친추 멀리멀리멀리멀리 방문", rules)
	assert.NotContains(res.Reasons, "profile_visit")

	rules.ProximityPairs[0].Window = 12
	res = Score("친추 멀리멀리멀리멀리 방문", rules)
	assert.Contains(res.Reasons, "profile_visit")
}

func TestScoreFlatCategoryWeightOnce(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	// two matched terms, category weight counted once, all terms collected
	res := Score("보상 또 보상 이벤트보상", rules)
	assert.Equal(30, res.Score)
	assert.Equal([]string{"보상", "이벤트보상"}, res.Hits)
}

func TestScoreDeterministic(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	text := "친추 받고 방문 보상 G코인 받자"
	a := Score(text, rules)
	b := Score(text, rules)
	assert.Equal(a, b)
}

func TestScoreNoMatch(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	res := Score("오늘 날씨 좋네요", rules)
	assert.Equal(0, res.Score)
	assert.Empty(res.Reasons)
	assert.Empty(res.Hits)
	assert.False(HasAnyKeyword("오늘 날씨 좋네요", rules))
	assert.True(HasAnyKeyword("보상", rules))
}

func TestNickFlagged(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	assert.True(NickFlagged("공식 서포터즈", rules))
	assert.True(NickFlagged("서 포 터 즈", rules))
	assert.False(NickFlagged("평범한닉네임", rules))
}

func TestNegationNearby(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	body := "방문 이벤트 주의하세요"
	assert.True(NegationNearby(body, []string{"방문"}, rules, 20))
	assert.False(NegationNearby(body, []string{"방문"}, rules, 3))
	assert.False(NegationNearby("방문 이벤트 해요", []string{"방문"}, rules, 20))
	assert.False(NegationNearby(body, nil, rules, 20))
}

func TestSignatureTruncation(t *testing.T) {
	assert := assert.New(t)
	rules := testRules()

	long := strings.Repeat("가나다", 200)
	sig := Signature(long, rules)
	assert.Equal(256, utf8.RuneCountInString(sig))
	assert.Equal(sig, Signature(long+"끝", rules))
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	h := HashOfString("abc|123")
	assert.Len(h, 16)
	assert.Equal(h, HashOfString("abc|123"))
	assert.NotEqual(h, HashOfString("abc|124"))
}
