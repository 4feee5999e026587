package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/krchat/sentinel/phash"
)

// profile images are small; anything past this is not a plausible avatar
const avatarMaxBytes = 10 << 20

// NoMatchReason distinguishes why an avatar check produced no match, so that
// a fetch failure is never mistaken for a genuine low-similarity result.
type NoMatchReason string

const (
	NoMatchDistance     NoMatchReason = "distance"
	NoMatchCooldown     NoMatchReason = "cooldown"
	NoMatchNoRefs       NoMatchReason = "no-refs"
	NoMatchNoAvatar     NoMatchReason = "no-avatar"
	NoMatchFetchFailed  NoMatchReason = "fetch-failed"
	NoMatchDecodeFailed NoMatchReason = "decode-failed"
)

// MatchResult is the outcome of one avatar similarity check.
type MatchResult struct {
	Matched  bool
	Label    string
	Distance int
	Reason   NoMatchReason
}

// checkAvatarOnDemand is the cooldown-gated variant used from the message
// pipeline: at most one expensive fetch+hash per account per cooldown window.
// The cooldown is recorded before scanning so that failures also count toward
// the rate bound.
func (eng *Engine) checkAvatarOnDemand(ctx context.Context, am AccountMeta) MatchResult {
	key := strconv.FormatInt(am.ID, 10)
	seen, err := eng.Dedupe.Check(ctx, cooldownNamespace, key)
	if err != nil {
		eng.Logger.Warn("avatar cooldown check failed", "err", err, "account", am.ID)
	} else if seen {
		return MatchResult{Reason: NoMatchCooldown}
	}
	if err := eng.Dedupe.Set(ctx, cooldownNamespace, key, eng.Config.phashCooldown()); err != nil {
		eng.Logger.Warn("avatar cooldown record failed", "err", err, "account", am.ID)
	}
	return eng.scanAvatar(ctx, am)
}

// scanAvatar fetches and hashes the account's avatar under the shared
// concurrency gate and matches it against the reference set. Fetch and decode
// failures yield a no-match result, never an error.
func (eng *Engine) scanAvatar(ctx context.Context, am AccountMeta) MatchResult {
	if am.AvatarURL == "" {
		return MatchResult{Reason: NoMatchNoAvatar}
	}
	if eng.Refs.Len() == 0 {
		return MatchResult{Reason: NoMatchNoRefs}
	}

	if err := eng.phashSem.Acquire(ctx, 1); err != nil {
		return MatchResult{Reason: NoMatchFetchFailed}
	}
	defer eng.phashSem.Release(1)

	data, err := eng.Fetcher.FetchBytes(ctx, am.AvatarURL, avatarMaxBytes)
	if err != nil {
		eng.Logger.Warn("avatar fetch failed", "err", err, "account", am.ID)
		phashScanCount.WithLabelValues("fetch-failed").Inc()
		return MatchResult{Reason: NoMatchFetchFailed}
	}
	h, err := phash.HashBytes(data)
	if err != nil {
		eng.Logger.Warn("avatar decode failed", "err", err, "account", am.ID)
		phashScanCount.WithLabelValues("decode-failed").Inc()
		return MatchResult{Reason: NoMatchDecodeFailed}
	}

	d, label := eng.Refs.MinDistance(h)
	if d <= eng.Config.phashThreshold() {
		eng.suspects.Store(am.ID, struct{}{})
		phashScanCount.WithLabelValues("match").Inc()
		return MatchResult{Matched: true, Label: label, Distance: d}
	}
	phashScanCount.WithLabelValues("no-match").Inc()
	return MatchResult{Distance: d, Reason: NoMatchDistance}
}

// ProcessAvatarChange handles an observed avatar update. The first sighting
// of an account only records a baseline key; a subsequent change for a
// recently joined account triggers a mandatory scan that bypasses the
// cooldown (one check per actual change).
func (eng *Engine) ProcessAvatarChange(ctx context.Context, evt *AvatarEvent) error {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing exception", "err", r, "account", evt.Account.ID, "type", "avatar")
			eventErrorCount.WithLabelValues("avatar").Inc()
		}
	}()
	start := time.Now()
	defer func() {
		eventDuration.WithLabelValues("avatar").Observe(time.Since(start).Seconds())
	}()
	eventProcessedCount.WithLabelValues("avatar").Inc()

	if evt.Account.Bot {
		return nil
	}

	prev, known := eng.avatarKeys.Load(evt.Account.ID)
	eng.avatarKeys.Store(evt.Account.ID, evt.Account.AvatarKey)
	if !known || prev == evt.Account.AvatarKey {
		return nil
	}
	if !eng.Config.joinedWithin(evt.Account, time.Now()) {
		return nil
	}

	res := eng.scanAvatar(ctx, evt.Account)
	if !res.Matched {
		eng.Logger.Debug("avatar change scanned", "account", evt.Account.ID, "reason", res.Reason, "distance", res.Distance)
		return nil
	}

	eff := eng.applyPolicy(ctx, target{kind: KindAvatar, account: evt.Account.ID}, TierStrict)
	eng.notify(ctx, Decision{
		Kind:    KindAvatar,
		Account: evt.Account,
		Tier:    TierStrict,
		Reasons: []string{"avatar-phash"},
		Hits:    []string{res.Label},
		Action:  eff.Describe(),
	})
	eng.Logger.Info("event processed",
		"type", "avatar",
		"account", evt.Account.ID,
		"tier", TierStrict,
		"trigger", "avatar-phash",
		"ref", res.Label,
		"distance", res.Distance,
		"effect", eff.Describe(),
	)
	return nil
}

// ProcessMemberJoin records the joining account's avatar baseline so that a
// later change is recognized as a change rather than a first sighting, then
// runs one cooldown-gated scan of the joining avatar itself.
func (eng *Engine) ProcessMemberJoin(ctx context.Context, am AccountMeta) error {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing exception", "err", r, "account", am.ID, "type", "join")
			eventErrorCount.WithLabelValues("join").Inc()
		}
	}()
	eventProcessedCount.WithLabelValues("join").Inc()

	if am.Bot {
		return nil
	}
	eng.avatarKeys.Store(am.ID, am.AvatarKey)
	eng.Logger.Debug("member join observed", "account", am.ID)

	res := eng.checkAvatarOnDemand(ctx, am)
	if !res.Matched {
		return nil
	}
	eff := eng.applyPolicy(ctx, target{kind: KindAvatar, account: am.ID}, TierStrict)
	eng.notify(ctx, Decision{
		Kind:    KindAvatar,
		Account: am,
		Tier:    TierStrict,
		Reasons: []string{"avatar-phash"},
		Hits:    []string{res.Label},
		Action:  eff.Describe(),
	})
	eng.Logger.Info("event processed",
		"type", "join",
		"account", am.ID,
		"tier", TierStrict,
		"trigger", "avatar-phash",
		"ref", res.Label,
		"distance", res.Distance,
		"effect", eff.Describe(),
	)
	return nil
}
