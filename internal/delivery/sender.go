package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"meter-capture-agent/internal/model"
)

// Sender posts one payload to the delivery endpoint. Any error, including a
// non-2xx answer, means the payload was not accepted.
type Sender interface {
	Send(ctx context.Context, url string, p model.Payload) error
}

// WebhookSender posts payloads as JSON over HTTP.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender creates a sender. A zero timeout leaves requests bounded only by ctx.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

// Send posts p to url. The response body is not inspected.
func (s *WebhookSender) Send(ctx context.Context, url string, p model.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}
