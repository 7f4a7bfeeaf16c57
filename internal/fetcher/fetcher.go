package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/kmori/arxiv-digest/internal/config"
)

// Paper represents a research paper with its metadata. Immutable once fetched.
type Paper struct {
	ID         string
	Title      string
	Authors    []string
	Abstract   string
	URL        string
	Published  time.Time
	Categories []string
}

// Query describes one daily intake: which keywords/categories to search for
// and how far back to look.
type Query struct {
	Keywords     []string
	Categories   []string
	Mode         config.MatchMode
	LookbackDays int
	MaxResults   int
}

// Cutoff returns the oldest submission date the query accepts.
func (q Query) Cutoff(now time.Time) time.Time {
	days := q.LookbackDays
	if days <= 0 {
		days = 1
	}
	return now.UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
}

// Fetcher is an interface for fetching research papers from various sources
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]Paper, error)
}

// New creates a new fetcher based on the configuration
func New(cfg *config.Config) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "arxiv":
		return NewArxivFetcher(), nil
	case "arxiv-html":
		return NewArxivListFetcher(nil), nil
	default:
		return nil, ErrUnsupportedFetcherType
	}
}

// ErrUnsupportedFetcherType is returned when an unsupported fetcher type is specified
var ErrUnsupportedFetcherType = fmt.Errorf("unsupported fetcher type")
