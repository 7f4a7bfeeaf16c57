package summarizer

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kmori/arxiv-digest/internal/classify"
	"github.com/kmori/arxiv-digest/internal/retry"
)

// fallbackMaxLen bounds the locally computed summary when the remote call
// fails: an ellipsized prefix of the abstract.
const fallbackMaxLen = 300

// Orchestrator fans paper summarization out to the remote service in bounded
// batches. Batches run sequentially; within a batch every paper gets its own
// request, so at most batchSize requests are outstanding at once.
type Orchestrator struct {
	summarizer Summarizer
	batchSize  int
	timeout    time.Duration
	retryCfg   retry.Config
}

func NewOrchestrator(s Summarizer, batchSize int, timeout time.Duration, maxAttempts int) *Orchestrator {
	if batchSize < 1 {
		batchSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg := retry.DefaultConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	return &Orchestrator{
		summarizer: s,
		batchSize:  batchSize,
		timeout:    timeout,
		retryCfg:   cfg,
	}
}

// SummarizeBatch summarizes every paper and returns exactly one Result per
// input, in input order. A failed remote call degrades that single item to a
// truncated-abstract fallback (or an error marker when even that is
// impossible); no paper is ever dropped and no failure propagates as an error.
func (o *Orchestrator) SummarizeBatch(ctx context.Context, papers []classify.Paper) []Result {
	results := make([]Result, len(papers))

	for start := 0; start < len(papers); start += o.batchSize {
		end := start + o.batchSize
		if end > len(papers) {
			end = len(papers)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// Each goroutine writes only its own slot, so result
				// placement is positional and lock-free.
				results[i] = o.summarizeOne(ctx, papers[i])
			}(i)
		}
		wg.Wait()
	}

	return results
}

func (o *Orchestrator) summarizeOne(ctx context.Context, cp classify.Paper) Result {
	res := Result{
		PaperID:         cp.ID,
		Title:           cp.Title,
		Authors:         cp.Authors,
		Abstract:        cp.Abstract,
		URL:             cp.URL,
		Published:       cp.Published,
		TopicCategory:   cp.TopicCategory,
		RelevanceScore:  cp.RelevanceScore,
		MatchedKeywords: cp.MatchedKeywords,
	}

	var text string
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		// The per-request timeout only cancels this item; siblings in the
		// same batch carry their own contexts.
		reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		summary, err := o.summarizer.Summarize(reqCtx, cp.Title, cp.Abstract)
		if err != nil {
			return err
		}
		text = summary
		return nil
	})

	if err == nil && strings.TrimSpace(text) != "" {
		res.Summary = strings.TrimSpace(text)
		res.Source = SourceAI
		return res
	}

	if fallback := fallbackSummary(cp.Abstract, fallbackMaxLen); fallback != "" {
		res.Summary = fallback
		res.Source = SourceFallback
		return res
	}

	res.Source = SourceError
	return res
}

// fallbackSummary returns an ellipsized prefix of the abstract, or "" when
// there is nothing to truncate.
func fallbackSummary(abstract string, maxLen int) string {
	abstract = strings.TrimSpace(abstract)
	if abstract == "" {
		return ""
	}
	if utf8.RuneCountInString(abstract) <= maxLen {
		return abstract
	}
	runes := []rune(abstract)
	return strings.TrimSpace(string(runes[:maxLen])) + "..."
}
