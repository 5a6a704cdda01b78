package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/subtrackd/subtrackd/internal/database"
)

// HTTPWebhookSender POSTs the notification payload as JSON to a
// user-supplied URL. The URL's shape is validated when the owner saves it
// (ValidateWebhookURL), not here.
type HTTPWebhookSender struct {
	client *http.Client
}

func NewHTTPWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		client: &http.Client{
			// Backstop only; the dispatcher's per-send context is the
			// operative bound.
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPWebhookSender) Send(ctx context.Context, target string, msg Message) error {
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "subtrackd-notifier/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// ValidateWebhookURL checks a user-supplied webhook URL. The store applies
// the same check on its persist path; this alias keeps the rule visible next
// to the sender that depends on it.
func ValidateWebhookURL(raw string) error {
	return database.ValidateWebhookURL(raw)
}
