package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/krchat/sentinel/keyword"
)

type EventKind string

const (
	KindMessage EventKind = "message"
	KindThread  EventKind = "thread"
	KindQR      EventKind = "qr"
	KindAvatar  EventKind = "avatar"
)

// AccountMeta is the snapshot of account state carried on every event.
type AccountMeta struct {
	ID          int64
	DisplayName string
	JoinedAt    time.Time
	AvatarURL   string
	// AvatarKey identifies the avatar content; it changes iff the image does.
	AvatarKey string
	Bot       bool
}

type Attachment struct {
	ID          int64
	URL         string
	ContentType string
	Size        int64
}

// MessageEvent is a new or edited message. Edits arrive as fresh events and
// are disambiguated from the original by the content fingerprint.
type MessageEvent struct {
	Account     AccountMeta
	MessageID   int64
	ChannelID   int64
	Content     string
	Attachments []Attachment
	// InThread marks messages posted inside a thread rather than a top-level
	// channel; the negation-guard exemption applies there.
	InThread bool
}

// Fingerprint is the dedup key for this message revision: message id plus a
// hash of the content and attachment ids. An edit changes the fingerprint, a
// redelivered gateway event does not.
func (e *MessageEvent) Fingerprint() string {
	var b strings.Builder
	b.WriteString(e.Content)
	b.WriteString("|")
	for i, att := range e.Attachments {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.FormatInt(att.ID, 10))
	}
	return fmt.Sprintf("%d:%s", e.MessageID, keyword.HashOfString(b.String()))
}

// ThreadEvent is a thread creation. The title is the scored text; the starter
// message carries any attachments.
type ThreadEvent struct {
	Account          AccountMeta
	ThreadID         int64
	ParentChannelID  int64
	Title            string
	StarterMessageID int64
	Attachments      []Attachment
}

// AvatarEvent is an observed avatar change. The new avatar URL and key are on
// the embedded account snapshot.
type AvatarEvent struct {
	Account AccountMeta
}
