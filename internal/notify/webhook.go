package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abdulachik/socialpilot/internal/metrics"
)

// WebhookNotifier posts notifications as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// WebhookConfig holds configuration for webhook notifications.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the notification. Any non-2xx response is an error.
func (w *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	start := time.Now()

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("notify", "webhook", start, 0, err)
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveNetworkRequest("notify", "webhook", start, resp.StatusCode, nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook error (status %d): %s", resp.StatusCode, string(msg))
	}
	return nil
}
