package engine

import (
	"context"
	"log/slog"
)

// previews are bounded so a notification never reproduces a full spam wall
const maxPreviewRunes = 600

// Decision is the structured record handed to the Notifier once the engine
// has decided an event. Presentation is entirely the Notifier's concern.
type Decision struct {
	Kind      EventKind
	Account   AccountMeta
	ChannelID int64
	MessageID int64
	Tier      Tier
	Score     int
	Reasons   []string
	Hits      []string
	// Action describes the sanctions that actually succeeded.
	Action  string
	Preview string
	// Payload is the defanged QR payload, when applicable.
	Payload string
	Exempt  bool
}

type Notifier interface {
	NotifyDecision(ctx context.Context, d Decision) error
}

// SlogNotifier is the fallback notifier when no webhook is configured.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n *SlogNotifier) NotifyDecision(ctx context.Context, d Decision) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("moderation decision",
		"kind", d.Kind,
		"account", d.Account.ID,
		"channel", d.ChannelID,
		"object", d.MessageID,
		"tier", d.Tier,
		"score", d.Score,
		"reasons", d.Reasons,
		"action", d.Action,
		"exempt", d.Exempt,
		"payload", d.Payload,
	)
	return nil
}

func previewText(s string) string {
	runes := []rune(s)
	if len(runes) <= maxPreviewRunes {
		return s
	}
	return string(runes[:maxPreviewRunes]) + "…"
}
