package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krchat/sentinel/phash"
)

func avatarPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			v := uint8((x*11 + y*5) % 256)
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v / 3, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fixtureWithBadAvatar wires the fetcher to serve data at url and registers
// its hash as a known-bad reference.
func fixtureWithBadAvatar(t *testing.T, url string, data []byte) *Engine {
	t.Helper()
	eng := EngineTestFixture()
	eng.Fetcher.(*MockFetcher).Blobs[url] = data
	h, err := phash.HashBytes(data)
	require.NoError(t, err)
	eng.Refs.Add("known-bad.png", h)
	return eng
}

func TestCheckAvatarOnDemand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	data := avatarPNG(t)
	eng := fixtureWithBadAvatar(t, "https://cdn.example/a.png", data)

	am := testAccount()
	am.AvatarURL = "https://cdn.example/a.png"

	res := eng.checkAvatarOnDemand(ctx, am)
	assert.True(res.Matched)
	assert.Equal(0, res.Distance)
	assert.Equal("known-bad.png", res.Label)
	assert.True(eng.IsSuspect(am.ID))

	// second check within the cooldown window is skipped
	res = eng.checkAvatarOnDemand(ctx, am)
	assert.False(res.Matched)
	assert.Equal(NoMatchCooldown, res.Reason)
}

func TestScanAvatarOutcomes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	data := avatarPNG(t)

	// fetch failure is distinguishable from a genuine low-similarity result
	eng := fixtureWithBadAvatar(t, "https://cdn.example/a.png", data)
	am := testAccount()
	am.AvatarURL = "https://cdn.example/other.png"
	res := eng.scanAvatar(ctx, am)
	assert.False(res.Matched)
	assert.Equal(NoMatchFetchFailed, res.Reason)

	// corrupt image
	eng = fixtureWithBadAvatar(t, "https://cdn.example/a.png", data)
	eng.Fetcher.(*MockFetcher).Blobs["https://cdn.example/junk.png"] = []byte("junk")
	am.AvatarURL = "https://cdn.example/junk.png"
	res = eng.scanAvatar(ctx, am)
	assert.Equal(NoMatchDecodeFailed, res.Reason)

	// no references loaded
	eng = EngineTestFixture()
	am.AvatarURL = "https://cdn.example/a.png"
	res = eng.scanAvatar(ctx, am)
	assert.Equal(NoMatchNoRefs, res.Reason)

	// no avatar at all
	eng = fixtureWithBadAvatar(t, "https://cdn.example/a.png", data)
	am.AvatarURL = ""
	res = eng.scanAvatar(ctx, am)
	assert.Equal(NoMatchNoAvatar, res.Reason)
}

func TestProcessAvatarChange(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	data := avatarPNG(t)
	eng := fixtureWithBadAvatar(t, "https://cdn.example/bad.png", data)

	am := testAccount()
	am.AvatarKey = "k1"
	require.NoError(t, eng.ProcessMemberJoin(ctx, am))

	// same key again is not a change
	require.NoError(t, eng.ProcessAvatarChange(ctx, &AvatarEvent{Account: am}))
	assert.Empty(decisions(eng))

	// a real change to a known-bad image triggers strict enforcement,
	// bypassing the on-demand cooldown
	am.AvatarKey = "k2"
	am.AvatarURL = "https://cdn.example/bad.png"
	require.NoError(t, eng.ProcessAvatarChange(ctx, &AvatarEvent{Account: am}))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(KindAvatar, ds[0].Kind)
	assert.Equal(TierStrict, ds[0].Tier)
	assert.Contains(ds[0].Reasons, "avatar-phash")
	assert.Equal("Ban", ds[0].Action)
}

func TestProcessMemberJoinScansAvatar(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	data := avatarPNG(t)
	eng := fixtureWithBadAvatar(t, "https://cdn.example/bad.png", data)

	am := testAccount()
	am.AvatarKey = "k1"
	am.AvatarURL = "https://cdn.example/bad.png"
	require.NoError(t, eng.ProcessMemberJoin(ctx, am))

	ds := decisions(eng)
	require.Len(t, ds, 1)
	assert.Equal(KindAvatar, ds[0].Kind)
	assert.True(eng.IsSuspect(am.ID))
}

func TestProcessAvatarChangeFirstSight(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	data := avatarPNG(t)
	eng := fixtureWithBadAvatar(t, "https://cdn.example/bad.png", data)

	// never-seen account establishes a baseline only, even with a bad avatar
	am := testAccount()
	am.AvatarKey = "k9"
	am.AvatarURL = "https://cdn.example/bad.png"
	require.NoError(t, eng.ProcessAvatarChange(ctx, &AvatarEvent{Account: am}))
	assert.Empty(decisions(eng))
}
