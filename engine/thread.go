package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/krchat/sentinel/keyword"
)

// ProcessThread handles a thread creation: the title is scored against the
// keyword rules, and the starter message's attachments get a QR scan. Thread
// titles are short, so tiering uses the numeric threshold only; the repeat
// and avatar triggers stay on the message pipeline.
func (eng *Engine) ProcessThread(ctx context.Context, evt *ThreadEvent) error {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing exception", "err", r, "account", evt.Account.ID, "thread", evt.ThreadID)
			eventErrorCount.WithLabelValues("thread").Inc()
		}
	}()
	start := time.Now()
	defer func() {
		eventDuration.WithLabelValues("thread").Observe(time.Since(start).Seconds())
	}()
	eventProcessedCount.WithLabelValues("thread").Inc()

	if evt.Account.Bot {
		return nil
	}

	fp := fmt.Sprintf("thread:%d", evt.ThreadID)
	seen, err := eng.Dedupe.Check(ctx, msgDedupeNamespace, fp)
	if err != nil {
		eng.Logger.Warn("dedup check failed, proceeding", "err", err, "thread", evt.ThreadID)
	} else if seen {
		return nil
	}
	if err := eng.Dedupe.Set(ctx, msgDedupeNamespace, fp, msgDedupeTTL); err != nil {
		eng.Logger.Warn("dedup record failed", "err", err, "thread", evt.ThreadID)
	}

	if !eng.Config.joinedWithin(evt.Account, time.Now()) {
		return nil
	}

	if channelMatch(eng.Config.MonitoredChannels, evt.ParentChannelID) {
		eng.scoreThreadTitle(ctx, evt)
	}

	// starter attachments go through the same QR scan as channel messages
	if channelMatch(eng.Config.QRChannels, evt.ParentChannelID) {
		eng.scanAttachments(ctx, evt.Account, evt.ThreadID, evt.StarterMessageID, evt.Attachments)
	}
	return nil
}

func (eng *Engine) scoreThreadTitle(ctx context.Context, evt *ThreadEvent) {
	if !keyword.HasAnyKeyword(evt.Title, eng.Rules) {
		return
	}
	score := keyword.Score(evt.Title, eng.Rules)

	// thread titles are warning-prone ("이런 사기 조심하세요"), so negation
	// always downgrades to log-only here
	exempt := keyword.NegationNearby(evt.Title, score.Hits, eng.Rules, negationGuardWindow)

	tier := TierNone
	trigger := ""
	if !exempt && score.Score >= eng.Rules.NormalThreshold() {
		tier = TierNormal
		trigger = "score"
	}

	var eff Effect
	if tier != TierNone {
		eff = eng.applyPolicy(ctx, target{
			kind:    KindThread,
			account: evt.Account.ID,
			channel: evt.ParentChannelID,
			message: evt.StarterMessageID,
			thread:  evt.ThreadID,
		}, tier)
	}

	if tier != TierNone || exempt {
		eng.notify(ctx, Decision{
			Kind:      KindThread,
			Account:   evt.Account,
			ChannelID: evt.ParentChannelID,
			MessageID: evt.StarterMessageID,
			Tier:      tier,
			Score:     score.Score,
			Reasons:   score.Reasons,
			Hits:      score.Hits,
			Action:    eff.Describe(),
			Preview:   previewText(evt.Title),
			Exempt:    exempt,
		})
	}

	eng.canonicalLogLine("thread", evt.Account.ID, evt.ParentChannelID, evt.ThreadID, score, tier, trigger, exempt, eff)
}
