package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/krchat/sentinel/qr"
)

// ProcessMessageAttachments scans a message's image attachments for QR
// payloads. Only runs in QR-scanned channels and only for recently joined
// accounts; attachments from established accounts are not fetched at all.
func (eng *Engine) ProcessMessageAttachments(ctx context.Context, evt *MessageEvent) error {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("event processing exception", "err", r, "account", evt.Account.ID, "type", "qr")
			eventErrorCount.WithLabelValues("qr").Inc()
		}
	}()
	start := time.Now()
	defer func() {
		eventDuration.WithLabelValues("qr").Observe(time.Since(start).Seconds())
	}()
	eventProcessedCount.WithLabelValues("qr").Inc()

	if evt.Account.Bot || len(evt.Attachments) == 0 {
		return nil
	}
	if !channelMatch(eng.Config.QRChannels, evt.ChannelID) {
		return nil
	}
	if !eng.Config.joinedWithin(evt.Account, time.Now()) {
		return nil
	}

	eng.scanAttachments(ctx, evt.Account, evt.ChannelID, evt.MessageID, evt.Attachments)
	return nil
}

// scanAttachments fetches and decodes each scannable attachment, enforcing
// once on the first QR payload found and ignoring the rest. Shared between
// the message and thread pipelines.
func (eng *Engine) scanAttachments(ctx context.Context, am AccountMeta, channelID, messageID int64, atts []Attachment) {
	for _, att := range atts {
		if !qr.Scannable(att.ContentType, att.Size, eng.Config.qrMaxBytes(), eng.Config.QRExcludeGIF) {
			continue
		}

		key := strconv.FormatInt(att.ID, 10)
		seen, err := eng.Dedupe.Check(ctx, attDedupeNamespace, key)
		if err != nil {
			eng.Logger.Warn("attachment dedup check failed, proceeding", "err", err, "attachment", att.ID)
		} else if seen {
			continue
		}
		if err := eng.Dedupe.Set(ctx, attDedupeNamespace, key, attDedupeTTL); err != nil {
			eng.Logger.Warn("attachment dedup record failed", "err", err, "attachment", att.ID)
		}

		payloads := eng.fetchAndDecode(ctx, att)
		if len(payloads) == 0 {
			continue
		}

		eff := eng.applyPolicy(ctx, target{
			kind:    KindQR,
			account: am.ID,
			channel: channelID,
			message: messageID,
		}, TierNone)
		eng.notify(ctx, Decision{
			Kind:      KindQR,
			Account:   am,
			ChannelID: channelID,
			MessageID: messageID,
			Reasons:   []string{"qr-payload"},
			Action:    eff.Describe(),
			Payload:   qr.Obfuscate(payloads[0]),
		})
		eng.Logger.Info("event processed",
			"type", "qr",
			"account", am.ID,
			"channel", channelID,
			"object", messageID,
			"attachment", att.ID,
			"payloads", len(payloads),
			"effect", eff.Describe(),
		)
		return
	}
}

// fetchAndDecode downloads one attachment and extracts QR payloads, holding
// the QR concurrency gate for the whole fetch+decode since both are the
// expensive part.
func (eng *Engine) fetchAndDecode(ctx context.Context, att Attachment) []string {
	if err := eng.qrSem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer eng.qrSem.Release(1)

	data, err := eng.Fetcher.FetchBytes(ctx, att.URL, eng.Config.qrMaxBytes())
	if err != nil {
		eng.Logger.Warn("attachment fetch failed", "err", err, "attachment", att.ID)
		return nil
	}
	return qr.Decode(data)
}
