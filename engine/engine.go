package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"

	"github.com/krchat/sentinel/dedupestore"
	"github.com/krchat/sentinel/keyword"
	"github.com/krchat/sentinel/phash"
	"github.com/krchat/sentinel/repeatstore"
	"github.com/krchat/sentinel/ruleset"
)

// Dedup namespaces and TTLs. Message and attachment fingerprints only need to
// survive the burst window in which gateway redelivery happens.
const (
	msgDedupeNamespace = "msg"
	attDedupeNamespace = "att"
	cooldownNamespace  = "phash-cd"

	msgDedupeTTL = 20 * time.Minute
	attDedupeTTL = 20 * time.Minute
)

const negationGuardWindow = 20

// runtime for executing detectors, managing state, and triggering enforcement.
//
// Collaborator fields must all be set before processing events; NewEngine only
// initializes the internal state.
type Engine struct {
	Logger   *slog.Logger
	Rules    *ruleset.RuleSet
	Dedupe   dedupestore.DedupeStore
	Repeats  repeatstore.RepeatStore
	Refs     *phash.RefSet
	Enforcer Enforcer
	Fetcher  Fetcher
	Notifier Notifier
	Config   EngineConfig

	qrSem    *semaphore.Weighted
	phashSem *semaphore.Weighted
	// last-seen avatar key per account, baseline for change detection
	avatarKeys *xsync.MapOf[int64, string]
	// accounts whose avatar matched a reference hash
	suspects *xsync.MapOf[int64, struct{}]
}

func NewEngine(logger *slog.Logger, rules *ruleset.RuleSet, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	qrCap := cfg.QRConcurrency
	if qrCap <= 0 {
		qrCap = defaultQRConcurrency
	}
	phashCap := cfg.PhashConcurrency
	if phashCap <= 0 {
		phashCap = defaultPhashConcurrency
	}
	return &Engine{
		Logger:     logger,
		Rules:      rules,
		Config:     cfg,
		qrSem:      semaphore.NewWeighted(qrCap),
		phashSem:   semaphore.NewWeighted(phashCap),
		avatarKeys: xsync.NewMapOf[int64, string](),
		suspects:   xsync.NewMapOf[int64, struct{}](),
	}
}

// IsSuspect reports whether the account's avatar has matched a reference hash
// at any point during this process lifetime.
func (eng *Engine) IsSuspect(accountID int64) bool {
	_, ok := eng.suspects.Load(accountID)
	return ok
}

// ProcessMessage runs the full detection pipeline over one message event.
// Returns an error only for unexpected store failures; detector and
// enforcement failures are absorbed and logged.
func (eng *Engine) ProcessMessage(ctx context.Context, evt *MessageEvent) error {
	// similar to an HTTP server, we want to recover any panics from detector execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing exception", "err", r, "account", evt.Account.ID, "message", evt.MessageID)
			eventErrorCount.WithLabelValues("message").Inc()
		}
	}()
	start := time.Now()
	defer func() {
		eventDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()
	eventProcessedCount.WithLabelValues("message").Inc()

	if evt.Account.Bot {
		return nil
	}
	logOnly := channelMatch(eng.Config.LogOnlyChannels, evt.ChannelID)
	if !evt.InThread && !logOnly && !channelMatch(eng.Config.MonitoredChannels, evt.ChannelID) {
		return nil
	}

	fp := evt.Fingerprint()
	seen, err := eng.Dedupe.Check(ctx, msgDedupeNamespace, fp)
	if err != nil {
		eng.Logger.Warn("dedup check failed, proceeding", "err", err, "message", evt.MessageID)
	} else if seen {
		return nil
	}
	if err := eng.Dedupe.Set(ctx, msgDedupeNamespace, fp, msgDedupeTTL); err != nil {
		eng.Logger.Warn("dedup record failed", "err", err, "message", evt.MessageID)
	}

	if !eng.Config.joinedWithin(evt.Account, time.Now()) {
		return nil
	}
	if !keyword.HasAnyKeyword(evt.Content, eng.Rules) {
		return nil
	}

	score := keyword.Score(evt.Content, eng.Rules)

	// warning and help-seeking posts in exempt channel classes are never enforced
	exempt := false
	if evt.InThread || logOnly {
		exempt = keyword.NegationNearby(evt.Content, score.Hits, eng.Rules, negationGuardWindow)
	}

	tier := TierNone
	trigger := ""
	if !exempt {
		tier, trigger = eng.decideTier(ctx, evt, score)
		if tier == TierNone && score.Score >= eng.Rules.NormalThreshold() {
			tier = TierNormal
			trigger = "score"
		}
	}

	var eff Effect
	if tier != TierNone && !logOnly {
		eff = eng.applyPolicy(ctx, target{
			kind:    KindMessage,
			account: evt.Account.ID,
			channel: evt.ChannelID,
			message: evt.MessageID,
		}, tier)
	}

	// below-tier keyword hits still notify so that moderators see near-miss
	// activity; the action stays "None"
	if tier != TierNone || exempt || len(score.Reasons) > 0 {
		eng.notify(ctx, Decision{
			Kind:      KindMessage,
			Account:   evt.Account,
			ChannelID: evt.ChannelID,
			MessageID: evt.MessageID,
			Tier:      tier,
			Score:     score.Score,
			Reasons:   score.Reasons,
			Hits:      score.Hits,
			Action:    eff.Describe(),
			Preview:   previewText(evt.Content),
			Exempt:    exempt,
		})
	}

	eng.canonicalLogLine("message", evt.Account.ID, evt.ChannelID, evt.MessageID, score, tier, trigger, exempt, eff)
	return nil
}

// decideTier evaluates the Strict triggers in fixed priority order; the first
// match wins and no later trigger runs. The numeric score threshold is the
// caller's fallback, not handled here.
func (eng *Engine) decideTier(ctx context.Context, evt *MessageEvent, score keyword.ScoreResult) (Tier, string) {
	if keyword.NickFlagged(evt.Account.DisplayName, eng.Rules) {
		return TierStrict, "nick-flag"
	}

	for _, pair := range eng.Rules.ProximityPairs {
		if pair.Strict && containsString(score.Reasons, pair.Label) {
			return TierStrict, pair.Label
		}
	}

	if eng.Repeats != nil && len(score.Hits) > 0 {
		sig := keyword.Signature(evt.Content, eng.Rules)
		cnt, chs, err := eng.Repeats.Bump(ctx, evt.Account.ID, sig, evt.ChannelID, eng.Rules.RepeatWindow())
		if err != nil {
			eng.Logger.Warn("repeat tracker failure", "err", err, "account", evt.Account.ID)
		} else if cnt >= 2 || chs >= 2 {
			return TierStrict, repeatTrigger(cnt, chs)
		}
	}

	// most expensive trigger last
	if res := eng.checkAvatarOnDemand(ctx, evt.Account); res.Matched {
		return TierStrict, "avatar-phash"
	}

	return TierNone, ""
}

func (eng *Engine) notify(ctx context.Context, d Decision) {
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.NotifyDecision(ctx, d); err != nil {
		eng.Logger.Warn("decision notification failed", "err", err, "account", d.Account.ID)
	}
}

func (eng *Engine) canonicalLogLine(typ string, accountID, channelID, objectID int64, score keyword.ScoreResult, tier Tier, trigger string, exempt bool, eff Effect) {
	eng.Logger.Info("event processed",
		"type", typ,
		"account", accountID,
		"channel", channelID,
		"object", objectID,
		"score", score.Score,
		"reasons", score.Reasons,
		"tier", tier,
		"trigger", trigger,
		"exempt", exempt,
		"effect", eff.Describe(),
	)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
