package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/retry"
)

// WebhookSubmitter posts completed applications as JSON to a URL.
// Network errors and 5xx responses are retried; other statuses are not.
type WebhookSubmitter struct {
	URL    string
	Client *http.Client
	Retry  *retry.Config
	now    func() time.Time
}

// NewWebhookSubmitter creates a submitter with a bounded client timeout.
func NewWebhookSubmitter(url string, timeout time.Duration) *WebhookSubmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSubmitter{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Retry:  retry.DefaultConfig(),
		now:    time.Now,
	}
}

type webhookPayload struct {
	SessionID   string     `json:"session_id"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Data        forms.Data `json:"data"`
}

// Submit implements Submitter. Any non-2xx response is an error.
func (s *WebhookSubmitter) Submit(ctx context.Context, sessionID string, data forms.Data) error {
	body, err := json.Marshal(webhookPayload{SessionID: sessionID, SubmittedAt: s.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	return retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		return s.post(ctx, body)
	})
}

func (s *WebhookSubmitter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build submission request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("post submission: unexpected status %s", resp.Status)
	default:
		return retry.Permanent(fmt.Errorf("post submission: unexpected status %s", resp.Status))
	}
}
