// Webhook decisions: agents that run their own brains get the
// observation POSTed to their endpoint and answer with an action.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook calls agent-owned decision endpoints.
type Webhook struct {
	httpClient *http.Client
}

// NewWebhook creates the caller. The timeout bounds the whole exchange
// so one slow endpoint cannot stall a tick batch.
func NewWebhook(timeout time.Duration) *Webhook {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{httpClient: &http.Client{Timeout: timeout}}
}

// Decide POSTs the observation JSON and returns the raw response body,
// which the decision engine parses like an LLM reply.
func (w *Webhook) Decide(ctx context.Context, url string, observation any) ([]byte, error) {
	body, err := json.Marshal(observation)
	if err != nil {
		return nil, fmt.Errorf("marshal observation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read webhook reply: %w", err)
	}
	return raw, nil
}
