package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// WebhookNotifier posts decision summaries to a chat "incoming webhook". The
// webhook must already be configured in the destination workspace.
type WebhookNotifier struct {
	WebhookURL string
	HTTPClient *http.Client
}

type webhookBody struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) NotifyDecision(ctx context.Context, d Decision) error {
	body, err := json.Marshal(webhookBody{Text: renderDecision(d)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("failed webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func renderDecision(d Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Sentinel %s decision ⚠️\n", d.Kind)
	fmt.Fprintf(&b, "account `%d` (%s) / channel `%d`\n", d.Account.ID, d.Account.DisplayName, d.ChannelID)
	fmt.Fprintf(&b, "tier: `%s` score: `%d` action: `%s`\n", d.Tier, d.Score, d.Action)
	if len(d.Reasons) > 0 {
		fmt.Fprintf(&b, "reasons: `%s`\n", strings.Join(d.Reasons, ", "))
	}
	if len(d.Hits) > 0 {
		fmt.Fprintf(&b, "terms: `%s`\n", strings.Join(d.Hits, ", "))
	}
	if d.Exempt {
		b.WriteString("negation-exempt, no enforcement\n")
	}
	if d.Payload != "" {
		fmt.Fprintf(&b, "payload: `%s`\n", d.Payload)
	}
	if d.Preview != "" {
		fmt.Fprintf(&b, "> %s\n", d.Preview)
	}
	return b.String()
}
