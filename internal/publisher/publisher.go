package publisher

import (
	"context"

	"github.com/kmori/arxiv-digest/internal/report"
)

// Publisher delivers a rendered digest somewhere.
type Publisher interface {
	Publish(ctx context.Context, digest *report.Digest) error
}

// StatusNotifier is implemented by publishers that also announce job
// lifecycle events. Publish remains the completion announcement.
type StatusNotifier interface {
	NotifyStart(ctx context.Context, lookbackDays, topN int) error
	NotifyFailure(ctx context.Context, runErr error) error
}
