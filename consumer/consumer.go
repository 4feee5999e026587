// Package consumer subscribes to the gateway event stream over websocket and
// feeds decoded events into the engine.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"

	"github.com/krchat/sentinel/engine"
)

type accountFrame struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
	AvatarURL   string    `json:"avatar_url"`
	AvatarKey   string    `json:"avatar_key"`
	Bot         bool      `json:"bot"`
}

type attachmentFrame struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type messageFrame struct {
	Account     accountFrame      `json:"account"`
	MessageID   int64             `json:"message_id"`
	ChannelID   int64             `json:"channel_id"`
	Content     string            `json:"content"`
	Attachments []attachmentFrame `json:"attachments"`
	InThread    bool              `json:"in_thread"`
}

type threadFrame struct {
	Account          accountFrame      `json:"account"`
	ThreadID         int64             `json:"thread_id"`
	ParentChannelID  int64             `json:"parent_channel_id"`
	Title            string            `json:"title"`
	StarterMessageID int64             `json:"starter_message_id"`
	Attachments      []attachmentFrame `json:"attachments"`
}

type eventFrame struct {
	Kind    string        `json:"kind"`
	Message *messageFrame `json:"message,omitempty"`
	Thread  *threadFrame  `json:"thread,omitempty"`
	Account *accountFrame `json:"account,omitempty"`
}

// EventConsumer reads the gateway stream and dispatches each frame to a
// bounded pool of workers. Frames for different accounts have no ordering
// guarantee; the engine's dedup state makes redelivery safe.
type EventConsumer struct {
	Logger      *slog.Logger
	Engine      *engine.Engine
	Host        string
	Parallelism int
}

// Run consumes the stream until ctx is cancelled, reconnecting with capped
// exponential backoff on connection loss.
func (c *EventConsumer) Run(ctx context.Context) error {
	if c.Parallelism <= 0 {
		c.Parallelism = 8
	}
	backoff := time.Second
	for {
		connected, err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			// a held connection means the stream recovered; start the next
			// retry ladder from scratch
			backoff = time.Second
		}
		c.Logger.Warn("event stream disconnected, reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// consumeOnce holds one connection until it drops or ctx is cancelled. The
// returned bool reports whether a connection was established at all.
func (c *EventConsumer) consumeOnce(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	header := http.Header{"User-Agent": []string{"sentinel/" + versioninfo.Short()}}
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.Host, header)
	if err != nil {
		return false, fmt.Errorf("dialing event stream: %w", err)
	}
	defer conn.Close()
	c.Logger.Info("event stream connected", "host", c.Host)

	frames := make(chan []byte, c.Parallelism)
	var wg sync.WaitGroup
	for i := 0; i < c.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for data := range frames {
				if err := c.HandleFrame(ctx, data); err != nil {
					c.Logger.Warn("frame handling failed", "err", err)
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(frames)

	// unblock the blocking read when ctx is cancelled; done lets the watcher
	// exit when the connection drops first, so reconnects do not accumulate
	// goroutines
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("reading event stream: %w", err)
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// HandleFrame decodes one stream frame and routes it to the matching engine
// entrypoint.
func (c *EventConsumer) HandleFrame(ctx context.Context, data []byte) error {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("decoding event frame: %w", err)
	}

	switch frame.Kind {
	case "message":
		if frame.Message == nil {
			return fmt.Errorf("message frame without payload")
		}
		evt := messageEvent(frame.Message)
		if err := c.Engine.ProcessMessage(ctx, evt); err != nil {
			return err
		}
		return c.Engine.ProcessMessageAttachments(ctx, evt)
	case "thread":
		if frame.Thread == nil {
			return fmt.Errorf("thread frame without payload")
		}
		return c.Engine.ProcessThread(ctx, threadEvent(frame.Thread))
	case "avatar":
		if frame.Account == nil {
			return fmt.Errorf("avatar frame without payload")
		}
		return c.Engine.ProcessAvatarChange(ctx, &engine.AvatarEvent{Account: accountMeta(frame.Account)})
	case "join":
		if frame.Account == nil {
			return fmt.Errorf("join frame without payload")
		}
		return c.Engine.ProcessMemberJoin(ctx, accountMeta(frame.Account))
	default:
		c.Logger.Debug("ignoring unknown frame kind", "kind", frame.Kind)
		return nil
	}
}

func accountMeta(f *accountFrame) engine.AccountMeta {
	return engine.AccountMeta{
		ID:          f.ID,
		DisplayName: f.DisplayName,
		JoinedAt:    f.JoinedAt,
		AvatarURL:   f.AvatarURL,
		AvatarKey:   f.AvatarKey,
		Bot:         f.Bot,
	}
}

func attachments(fs []attachmentFrame) []engine.Attachment {
	var out []engine.Attachment
	for _, f := range fs {
		out = append(out, engine.Attachment{ID: f.ID, URL: f.URL, ContentType: f.ContentType, Size: f.Size})
	}
	return out
}

func messageEvent(f *messageFrame) *engine.MessageEvent {
	return &engine.MessageEvent{
		Account:     accountMeta(&f.Account),
		MessageID:   f.MessageID,
		ChannelID:   f.ChannelID,
		Content:     f.Content,
		Attachments: attachments(f.Attachments),
		InThread:    f.InThread,
	}
}

func threadEvent(f *threadFrame) *engine.ThreadEvent {
	return &engine.ThreadEvent{
		Account:          accountMeta(&f.Account),
		ThreadID:         f.ThreadID,
		ParentChannelID:  f.ParentChannelID,
		Title:            f.Title,
		StarterMessageID: f.StarterMessageID,
		Attachments:      attachments(f.Attachments),
	}
}
