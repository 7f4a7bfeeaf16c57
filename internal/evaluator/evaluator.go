package evaluator

import (
	"context"
	"fmt"

	"github.com/kmori/arxiv-digest/internal/config"
)

// Quality levels assigned to evaluated papers, strongest to weakest.
const (
	LevelTop       = "top"
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelFair      = "fair"
	LevelWeak      = "weak"
)

// Source flags mark how a quality assessment was produced.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Scores is one paper's quality assessment: five dimensions on a 1-10 scale
// plus the blended overall score and a level bucket.
type Scores struct {
	Innovation        float64 `json:"innovation_score"`
	Practicality      float64 `json:"practicality_score"`
	TechnicalDepth    float64 `json:"technical_depth_score"`
	ExperimentalRigor float64 `json:"experimental_rigor_score"`
	ImpactPotential   float64 `json:"impact_potential_score"`

	Overall    float64  `json:"overall_score"`
	Level      string   `json:"quality_level"`
	Reasoning  string   `json:"reasoning"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Evaluator scores a single summarized paper.
type Evaluator interface {
	Evaluate(ctx context.Context, title, summary string) (Scores, error)
}

// New creates an evaluator based on the configuration. Type "none" disables
// the stage and returns a nil evaluator without error.
func New(cfg *config.Config) (Evaluator, error) {
	switch cfg.Evaluator.Type {
	case "anthropic":
		return NewAnthropicEvaluator(cfg.Summarizer.APIKey, cfg.Evaluator.Model, cfg.Evaluator.MaxTokens), nil
	case "none":
		return nil, nil
	default:
		return nil, ErrUnsupportedEvaluatorType
	}
}

// ErrUnsupportedEvaluatorType is returned when an unsupported evaluator type is specified
var ErrUnsupportedEvaluatorType = fmt.Errorf("unsupported evaluator type")

// levelFor buckets an overall score into a quality level.
func levelFor(score float64) string {
	switch {
	case score >= 9:
		return LevelTop
	case score >= 7:
		return LevelExcellent
	case score >= 5:
		return LevelGood
	case score >= 3:
		return LevelFair
	default:
		return LevelWeak
	}
}
