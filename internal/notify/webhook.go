package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookProvider POSTs the notification as JSON to a fixed endpoint,
// typically a chat-platform webhook. Any non-2xx response is a failed
// delivery; 403/404 map to ErrRecipientUnreachable.
type WebhookProvider struct {
	hc  *http.Client
	url string
}

func NewWebhookProvider(url string) *WebhookProvider {
	return &WebhookProvider{
		hc:  &http.Client{Timeout: 10 * time.Second},
		url: url,
	}
}

func (p *WebhookProvider) Name() string { return "webhook" }

type webhookPayload struct {
	Owner   string `json:"owner"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (p *WebhookProvider) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(webhookPayload{Owner: n.Owner, Subject: n.Subject, Content: n.Body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (status=%d)", ErrRecipientUnreachable, resp.StatusCode)
	default:
		return fmt.Errorf("webhook delivery failed (status=%d)", resp.StatusCode)
	}
}
