package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() AccountMeta {
	return AccountMeta{
		ID:          7,
		DisplayName: "평범한닉네임",
		JoinedAt:    time.Now().Add(-24 * time.Hour),
	}
}

func testMessage(msgID int64, content string) *MessageEvent {
	return &MessageEvent{
		Account:   testAccount(),
		MessageID: msgID,
		ChannelID: 100,
		Content:   content,
	}
}

func decisions(eng *Engine) []Decision {
	return eng.Notifier.(*MemNotifier).All()
}

func enforcer(eng *Engine) *MockEnforcer {
	return eng.Enforcer.(*MockEnforcer)
}

func TestProcessMessageEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	err := eng.ProcessMessage(ctx, testMessage(1, "친추 받고 방문 보상 G코인 받자"))
	require.NoError(t, err)

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(KindMessage, ds[0].Kind)
	assert.Equal(TierStrict, ds[0].Tier)
	assert.Contains(ds[0].Reasons, "profile_visit")
	assert.GreaterOrEqual(ds[0].Score, 60)
	assert.True(strings.HasPrefix(ds[0].Action, "Ban"))

	recorded := enforcer(eng).Recorded()
	assert.Contains(recorded, "delete-message")
	assert.Contains(recorded, "ban")
	assert.NotContains(recorded, "timeout")
}

func TestProcessMessageDedup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := testMessage(2, "친추 받고 방문 보상 G코인 받자")
	require.NoError(t, eng.ProcessMessage(ctx, evt))
	require.NoError(t, eng.ProcessMessage(ctx, evt))
	assert.Len(decisions(eng), 1)

	// an edit carries a new fingerprint and is processed again
	edited := testMessage(2, "친추 받고 방문 보상 G코인 받자!")
	require.NoError(t, eng.ProcessMessage(ctx, edited))
	assert.Len(decisions(eng), 2)
}

func TestProcessMessageThresholdBoundary(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// reward(30) + gcoin(30) lands exactly on the threshold
	eng := EngineTestFixture()
	require.NoError(t, eng.ProcessMessage(ctx, testMessage(3, "보상 받고 g코인 받자")))
	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(TierNormal, ds[0].Tier)
	assert.Equal(60, ds[0].Score)
	assert.Equal("Timeout (24h) + Delete", ds[0].Action)

	// one category below threshold, no strict trigger: moderators still get
	// a log-only decision, nothing is enforced
	eng = EngineTestFixture()
	require.NoError(t, eng.ProcessMessage(ctx, testMessage(4, "보상만 받자")))
	ds = decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(TierNone, ds[0].Tier)
	assert.Equal("None", ds[0].Action)
	assert.Contains(ds[0].Reasons, "reward")
	assert.Empty(enforcer(eng).Recorded())
}

func TestProcessMessageNickFlag(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := testMessage(5, "보상 이벤트")
	evt.Account.DisplayName = "공식 서포터즈"
	require.NoError(t, eng.ProcessMessage(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(TierStrict, ds[0].Tier)
	assert.Less(ds[0].Score, 60)
}

func TestProcessMessageRepeatEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	// below threshold, first post bumps the tracker and reports log-only
	require.NoError(t, eng.ProcessMessage(ctx, testMessage(6, "보상 이벤트")))
	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(TierNone, ds[0].Tier)
	assert.Empty(enforcer(eng).Recorded())

	// near-identical repeat escalates to strict
	require.NoError(t, eng.ProcessMessage(ctx, testMessage(7, "보상 이벤트")))
	ds = decisions(eng)
	require.Len(t, ds, 2)
	assert.Equal(TierStrict, ds[1].Tier)
}

func TestProcessMessageCrossPostEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	first := testMessage(8, "보상 이벤트")
	first.ChannelID = 100
	require.NoError(t, eng.ProcessMessage(ctx, first))

	second := testMessage(9, "보상 이벤트")
	second.ChannelID = 101
	require.NoError(t, eng.ProcessMessage(ctx, second))

	ds := decisions(eng)
	require.Len(t, ds, 2)
	assert.Equal(TierNone, ds[0].Tier)
	assert.Equal(TierStrict, ds[1].Tier)
}

func TestProcessMessageGates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// unmonitored channel
	eng := EngineTestFixture()
	evt := testMessage(10, "친추 받고 방문 보상 G코인 받자")
	evt.ChannelID = 999
	require.NoError(t, eng.ProcessMessage(ctx, evt))
	assert.Empty(decisions(eng))

	// account outside the join window
	eng = EngineTestFixture()
	evt = testMessage(11, "친추 받고 방문 보상 G코인 받자")
	evt.Account.JoinedAt = time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, eng.ProcessMessage(ctx, evt))
	assert.Empty(decisions(eng))

	// bot accounts are never scored
	eng = EngineTestFixture()
	evt = testMessage(12, "친추 받고 방문 보상 G코인 받자")
	evt.Account.Bot = true
	require.NoError(t, eng.ProcessMessage(ctx, evt))
	assert.Empty(decisions(eng))
}

func TestProcessMessageLogOnlyChannel(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := testMessage(13, "친추 받고 방문 보상 G코인 받자")
	evt.ChannelID = 300
	require.NoError(t, eng.ProcessMessage(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(TierStrict, ds[0].Tier)
	assert.Equal("None", ds[0].Action)
	assert.Empty(enforcer(eng).Recorded())
}

func TestProcessMessageNegationExemption(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := testMessage(14, "친추 방문 보상 g코인 사기 조심하세요")
	evt.InThread = true
	require.NoError(t, eng.ProcessMessage(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.True(ds[0].Exempt)
	assert.Equal(TierNone, ds[0].Tier)
	assert.Equal("None", ds[0].Action)
	assert.Empty(enforcer(eng).Recorded())
}

func TestProcessThread(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := &ThreadEvent{
		Account:          testAccount(),
		ThreadID:         500,
		ParentChannelID:  100,
		Title:            "보상 받고 g코인 받자",
		StarterMessageID: 501,
	}
	require.NoError(t, eng.ProcessThread(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(KindThread, ds[0].Kind)
	assert.Equal(TierNormal, ds[0].Tier)
	assert.Equal("Delete", ds[0].Action)

	// the starter message goes first, then the thread itself
	recorded := enforcer(eng).Recorded()
	assert.Equal([]string{"delete-message", "delete-thread"}, recorded)
	assert.Equal(int64(501), enforcer(eng).Actions[0].ObjectID)

	// redelivery of the same thread creation is deduplicated
	require.NoError(t, eng.ProcessThread(ctx, evt))
	assert.Len(decisions(eng), 1)
}

func TestProcessThreadStarterAbsent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	// starter already gone from the stream payload: only the thread is deleted
	evt := &ThreadEvent{
		Account:         testAccount(),
		ThreadID:        510,
		ParentChannelID: 100,
		Title:           "보상 받고 g코인 받자",
	}
	require.NoError(t, eng.ProcessThread(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal("Delete", ds[0].Action)
	assert.Equal([]string{"delete-thread"}, enforcer(eng).Recorded())
}

func TestProcessThreadDeleteFallbackTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	enforcer(eng).FailDelete = true

	// nothing could be removed, so the author gets a timeout instead
	evt := &ThreadEvent{
		Account:          testAccount(),
		ThreadID:         511,
		ParentChannelID:  100,
		Title:            "보상 받고 g코인 받자",
		StarterMessageID: 512,
	}
	require.NoError(t, eng.ProcessThread(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal("Timeout (24h)", ds[0].Action)
	assert.Contains(enforcer(eng).Recorded(), "timeout")
}

func TestProcessThreadNegationLogOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	evt := &ThreadEvent{
		Account:          testAccount(),
		ThreadID:         502,
		ParentChannelID:  100,
		Title:            "보상 g코인 사기 주의",
		StarterMessageID: 503,
	}
	require.NoError(t, eng.ProcessThread(ctx, evt))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.True(ds[0].Exempt)
	assert.Empty(enforcer(eng).Recorded())
}
