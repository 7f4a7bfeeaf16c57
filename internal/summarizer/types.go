package summarizer

import (
	"context"
	"time"
)

// Source flags mark how a summary was produced. Every result carries exactly
// one of these; callers switch over all three.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback-truncated"
	SourceError    = "error"
)

// Result is one summarized paper. The classification metadata (TopicCategory,
// RelevanceScore, MatchedKeywords) is carried over from the classified paper
// unchanged; the summarization stage must never drop or overwrite it.
type Result struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Abstract  string    `json:"abstract"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`

	Summary string `json:"summary"`
	Source  string `json:"source"`

	TopicCategory   string   `json:"topic_category"`
	RelevanceScore  float64  `json:"relevance_score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`

	// Filled in by the quality evaluation stage when it is enabled.
	QualityScore     float64 `json:"quality_score,omitempty"`
	QualityLevel     string  `json:"quality_level,omitempty"`
	QualityReasoning string  `json:"quality_reasoning,omitempty"`
	QualitySource    string  `json:"quality_source,omitempty"`
}

// Summarizer produces a short summary for a single paper.
type Summarizer interface {
	Summarize(ctx context.Context, title, abstract string) (string, error)
}
