// Package enforce provides Enforcer implementations: an HTTP client that
// relays sanction commands to the chat gateway sidecar, and a no-op variant
// for shadow deployments.
package enforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/krchat/sentinel/engine"
)

// actionRequest is the wire form of one sanction command.
type actionRequest struct {
	Action    string `json:"action"`
	AccountID int64  `json:"account_id,omitempty"`
	ChannelID int64  `json:"channel_id,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	ThreadID  int64  `json:"thread_id,omitempty"`
	// DurationSec applies to timeouts only.
	DurationSec int64 `json:"duration_sec,omitempty"`
}

type memberResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	JoinedAt    string `json:"joined_at"`
	AvatarURL   string `json:"avatar_url"`
	Bot         bool   `json:"bot"`
}

// HTTPEnforcer relays enforcement calls to the gateway sidecar that holds the
// platform session. It deliberately knows nothing about the platform API.
type HTTPEnforcer struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ engine.Enforcer = (*HTTPEnforcer)(nil)

func NewHTTPEnforcer(baseURL string, client *http.Client) *HTTPEnforcer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEnforcer{BaseURL: baseURL, HTTPClient: client}
}

func (e *HTTPEnforcer) post(ctx context.Context, req actionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/actions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := e.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("enforcement request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("enforcement request failed: status %d", resp.StatusCode)
	}
	return nil
}

func (e *HTTPEnforcer) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return e.post(ctx, actionRequest{Action: "delete_message", ChannelID: channelID, MessageID: messageID})
}

func (e *HTTPEnforcer) DeleteThread(ctx context.Context, threadID int64) error {
	return e.post(ctx, actionRequest{Action: "delete_thread", ThreadID: threadID})
}

func (e *HTTPEnforcer) TimeoutAccount(ctx context.Context, accountID int64, dur time.Duration) error {
	return e.post(ctx, actionRequest{Action: "timeout", AccountID: accountID, DurationSec: int64(dur.Seconds())})
}

func (e *HTTPEnforcer) BanAccount(ctx context.Context, accountID int64) error {
	return e.post(ctx, actionRequest{Action: "ban", AccountID: accountID})
}

func (e *HTTPEnforcer) ResolveMember(ctx context.Context, accountID int64) (*engine.AccountMeta, error) {
	url := fmt.Sprintf("%s/members/%d", e.BaseURL, accountID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("member lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, engine.ErrMemberNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("member lookup failed: status %d", resp.StatusCode)
	}

	var mr memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decoding member response: %w", err)
	}
	am := &engine.AccountMeta{
		ID:          mr.ID,
		DisplayName: mr.DisplayName,
		AvatarURL:   mr.AvatarURL,
		Bot:         mr.Bot,
	}
	if mr.JoinedAt != "" {
		if t, err := time.Parse(time.RFC3339, mr.JoinedAt); err == nil {
			am.JoinedAt = t
		}
	}
	return am, nil
}

// NoopEnforcer logs every requested action without applying it. Used for
// shadow deployments where decisions should be observed but never executed.
type NoopEnforcer struct {
	Logger *slog.Logger
}

var _ engine.Enforcer = (*NoopEnforcer)(nil)

func (e *NoopEnforcer) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *NoopEnforcer) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	e.logger().Info("shadow action", "action", "delete_message", "channel", channelID, "message", messageID)
	return nil
}

func (e *NoopEnforcer) DeleteThread(ctx context.Context, threadID int64) error {
	e.logger().Info("shadow action", "action", "delete_thread", "thread", threadID)
	return nil
}

func (e *NoopEnforcer) TimeoutAccount(ctx context.Context, accountID int64, dur time.Duration) error {
	e.logger().Info("shadow action", "action", "timeout", "account", accountID, "duration", dur)
	return nil
}

func (e *NoopEnforcer) BanAccount(ctx context.Context, accountID int64) error {
	e.logger().Info("shadow action", "action", "ban", "account", accountID)
	return nil
}

func (e *NoopEnforcer) ResolveMember(ctx context.Context, accountID int64) (*engine.AccountMeta, error) {
	return &engine.AccountMeta{ID: accountID}, nil
}
