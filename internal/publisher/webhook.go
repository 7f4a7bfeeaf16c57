package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kmori/arxiv-digest/internal/report"
	"github.com/kmori/arxiv-digest/internal/retry"
)

type webhookRunPayload struct {
	Event              string `json:"event"`
	Date               string `json:"date"`
	Fetched            int    `json:"fetched"`
	DuplicatesSkipped  int    `json:"duplicates_skipped"`
	Summarized         int    `json:"summarized"`
	SummarizedAI       int    `json:"summarized_ai"`
	SummarizedFallback int    `json:"summarized_fallback"`
	Errors             int    `json:"errors"`
}

type webhookEventPayload struct {
	Event        string `json:"event"`
	Date         string `json:"date"`
	LookbackDays int    `json:"lookback_days,omitempty"`
	TopN         int    `json:"top_n,omitempty"`
	Error        string `json:"error,omitempty"`
}

// WebhookNotifier posts job lifecycle events to an HTTP endpoint: a start
// event when a run begins, the run counters on completion, and a failure
// event when a run aborts. An external channel can watch whether the daily
// job is healthy without receiving the full digest.
type WebhookNotifier struct {
	url         string
	client      *http.Client
	retryConfig retry.Config
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		retryConfig: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
		},
	}
}

func (n *WebhookNotifier) Publish(ctx context.Context, digest *report.Digest) error {
	payload := webhookRunPayload{
		Event:      "complete",
		Date:       digest.Date.Format("2006-01-02"),
		Summarized: len(digest.Results),
	}
	if digest.Report != nil {
		payload.Fetched = digest.Report.Fetched
		payload.DuplicatesSkipped = digest.Report.DuplicatesSkipped
		payload.SummarizedAI = digest.Report.SummarizedAI
		payload.SummarizedFallback = digest.Report.SummarizedFallback
		payload.Errors = digest.Report.Errors
	}
	return n.post(ctx, payload)
}

func (n *WebhookNotifier) NotifyStart(ctx context.Context, lookbackDays, topN int) error {
	return n.post(ctx, webhookEventPayload{
		Event:        "start",
		Date:         time.Now().UTC().Format("2006-01-02"),
		LookbackDays: lookbackDays,
		TopN:         topN,
	})
}

func (n *WebhookNotifier) NotifyFailure(ctx context.Context, runErr error) error {
	return n.post(ctx, webhookEventPayload{
		Event: "failure",
		Date:  time.Now().UTC().Format("2006-01-02"),
		Error: runErr.Error(),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	return retry.Do(ctx, n.retryConfig, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
		}
		return nil
	})
}
