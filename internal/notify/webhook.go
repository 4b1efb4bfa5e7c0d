// Package notify pushes finished reports to an external sync endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mutsynchub/poslens/internal/kpi"
	"github.com/mutsynchub/poslens/internal/pipeline"
)

// payload is the sync envelope the dashboard backend expects.
type payload struct {
	OrgID   string     `json:"org_id"`
	Type    string     `json:"type"`
	Results kpi.Report `json:"results"`
	LastRun time.Time  `json:"last_run"`
}

// Webhook POSTs each finished report to a configured URL with an x-api-key
// header. A Webhook with an empty URL is a no-op, so callers never need a
// nil check.
type Webhook struct {
	url    string
	apiKey string
	client *http.Client
}

// NewWebhook creates a Webhook notifier. url may be empty to disable
// notification entirely.
func NewWebhook(url, apiKey string) *Webhook {
	return &Webhook{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish delivers one result. The returned error is informational: the
// pipeline logs it and keeps the cycle's outcome regardless.
func (w *Webhook) Publish(ctx context.Context, res pipeline.Result) error {
	if w.url == "" {
		return nil
	}

	body, err := json.Marshal(payload{
		OrgID:   res.Tenant,
		Type:    res.Analytic,
		Results: res.Report,
		LastRun: res.RanAt,
	})
	if err != nil {
		return fmt.Errorf("encoding sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("x-api-key", w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting report sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report sync returned %s", resp.Status)
	}
	return nil
}
