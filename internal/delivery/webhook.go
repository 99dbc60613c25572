package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookSender posts payloads to webhook endpoints. Posts are paced to
// roughly 20 requests per second across all channels.
type WebhookSender struct {
	client  HTTPClient
	limiter *rate.Limiter
}

// NewWebhookSender creates a WebhookSender with the given HTTP client.
func NewWebhookSender(client HTTPClient) *WebhookSender {
	return &WebhookSender{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}
}

// Send posts the payload to the webhook URL. A nil return means the endpoint
// acknowledged delivery; anything else leaves the item unhandled so it is
// retried next run.
func (s *WebhookSender) Send(ctx context.Context, webhookURL string, p Payload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
