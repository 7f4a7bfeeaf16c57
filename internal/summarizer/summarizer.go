package summarizer

import (
	"fmt"

	"github.com/kmori/arxiv-digest/internal/config"
)

// New creates a summarizer based on the configuration
func New(cfg *config.Config) (Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "anthropic":
		return NewAnthropicSummarizer(cfg.Summarizer.APIKey, cfg.Summarizer.Model, cfg.Summarizer.MaxTokens), nil
	default:
		return nil, ErrUnsupportedSummarizerType
	}
}

// ErrUnsupportedSummarizerType is returned when an unsupported summarizer type is specified
var ErrUnsupportedSummarizerType = fmt.Errorf("unsupported summarizer type")
