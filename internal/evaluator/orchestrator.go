package evaluator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kmori/arxiv-digest/internal/summarizer"
)

// Orchestrator scores summarized papers in bounded batches, with the same
// concurrency discipline as the summarization stage: batches run
// sequentially, papers within a batch concurrently, each with its own
// timeout.
type Orchestrator struct {
	evaluator Evaluator
	batchSize int
	timeout   time.Duration
}

func NewOrchestrator(e Evaluator, batchSize int, timeout time.Duration) *Orchestrator {
	if batchSize < 1 {
		batchSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{
		evaluator: e,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// EvaluateAll returns exactly one result per input, in input order, with the
// quality fields filled in. A failed evaluation degrades that single item to
// a conservative relevance-derived estimate; no result is ever dropped and
// the summarization fields pass through untouched.
func (o *Orchestrator) EvaluateAll(ctx context.Context, results []summarizer.Result) []summarizer.Result {
	out := make([]summarizer.Result, len(results))

	for start := 0; start < len(results); start += o.batchSize {
		end := start + o.batchSize
		if end > len(results) {
			end = len(results)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = o.evaluateOne(ctx, results[i])
			}(i)
		}
		wg.Wait()
	}

	return out
}

func (o *Orchestrator) evaluateOne(ctx context.Context, r summarizer.Result) summarizer.Result {
	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	text := r.Summary
	if strings.TrimSpace(text) == "" {
		text = r.Abstract
	}

	scores, err := o.evaluator.Evaluate(reqCtx, r.Title, text)
	if err != nil {
		scores = fallbackScores(r.RelevanceScore)
		r.QualitySource = SourceFallback
	} else {
		r.QualitySource = SourceAI
	}

	r.QualityScore = scores.Overall
	r.QualityLevel = scores.Level
	r.QualityReasoning = scores.Reasoning
	return r
}

// fallbackScores maps keyword relevance onto a conservative mid-range
// estimate (4-7) when the evaluation service is unavailable.
func fallbackScores(relevance float64) Scores {
	base := 4.0 + relevance*3.0
	return Scores{
		Innovation:        base,
		Practicality:      base,
		TechnicalDepth:    base,
		ExperimentalRigor: base,
		ImpactPotential:   base,
		Overall:           base,
		Level:             LevelFair,
		Reasoning:         "Conservative estimate derived from keyword relevance; the evaluation service was unavailable.",
	}
}

// Rank reorders results in place by blended quality and relevance, strongest
// first. Quality dominates; relevance (scaled to the same 0-10 range) breaks
// close calls. Stable for full ties.
func Rank(results []summarizer.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return blended(results[i]) > blended(results[j])
	})
}

func blended(r summarizer.Result) float64 {
	return r.QualityScore*0.7 + r.RelevanceScore*10*0.3
}
