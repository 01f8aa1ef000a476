package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

// WebhookChannel posts alerts as JSON. The payload carries a top-level "text"
// field, so Slack and Mattermost incoming webhooks accept it unchanged.
type WebhookChannel struct {
	name       string
	url        string
	headers    map[string]string
	httpClient *http.Client
}

type webhookPayload struct {
	Text  string              `json:"text"`
	Alert domain.AlertMessage `json:"alert"`
}

// NewWebhook creates a webhook channel.
func NewWebhook(name, url string, headers map[string]string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		name:    name,
		url:     url,
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *WebhookChannel) Name() string { return c.name }

// Deliver posts msg. Any non-2xx response is a delivery failure.
func (c *WebhookChannel) Deliver(ctx context.Context, msg domain.AlertMessage) error {
	body, err := json.Marshal(webhookPayload{Text: msg.Text(), Alert: msg})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s responded %d: %s", c.name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
