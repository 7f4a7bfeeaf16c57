package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kmori/arxiv-digest/internal/cache"
	"github.com/kmori/arxiv-digest/internal/classify"
	"github.com/kmori/arxiv-digest/internal/config"
	"github.com/kmori/arxiv-digest/internal/dedup"
	"github.com/kmori/arxiv-digest/internal/evaluator"
	"github.com/kmori/arxiv-digest/internal/fetcher"
	"github.com/kmori/arxiv-digest/internal/publisher"
	"github.com/kmori/arxiv-digest/internal/report"
	"github.com/kmori/arxiv-digest/internal/summarizer"
)

// Job orchestrates one daily run: intake -> dedup -> classify -> top-N ->
// summarize -> evaluate -> flush cache -> render/publish -> persist report.
type Job struct {
	cfg        *config.Config
	fetcher    fetcher.Fetcher
	orch       *summarizer.Orchestrator
	eval       *evaluator.Orchestrator
	store      *cache.Store
	publishers []publisher.Publisher
}

// New builds a daily job. eval may be nil when the evaluation stage is
// disabled.
func New(cfg *config.Config, f fetcher.Fetcher, orch *summarizer.Orchestrator, eval *evaluator.Orchestrator, store *cache.Store, pubs []publisher.Publisher) *Job {
	return &Job{
		cfg:        cfg,
		fetcher:    f,
		orch:       orch,
		eval:       eval,
		store:      store,
		publishers: pubs,
	}
}

// notifyStart announces the run to publishers that track job lifecycle.
func (j *Job) notifyStart(ctx context.Context) {
	for _, pub := range j.publishers {
		if n, ok := pub.(publisher.StatusNotifier); ok {
			if err := n.NotifyStart(ctx, j.cfg.LookbackDays, j.cfg.TopN); err != nil {
				log.Printf("WARNING: start notification failed: %v", err)
			}
		}
	}
}

// notifyFailure announces an aborted run.
func (j *Job) notifyFailure(ctx context.Context, runErr error) {
	for _, pub := range j.publishers {
		if n, ok := pub.(publisher.StatusNotifier); ok {
			if err := n.NotifyFailure(ctx, runErr); err != nil {
				log.Printf("WARNING: failure notification failed: %v", err)
			}
		}
	}
}

// Run executes the full pipeline once and returns the run report. Per-item
// failures (summarization, publishing) degrade but never abort: the run
// always completes with explicit counts of degraded items.
func (j *Job) Run(ctx context.Context) (*report.RunReport, error) {
	rep := &report.RunReport{StartedAt: time.Now().UTC()}

	j.notifyStart(ctx)

	// Step 0: Load the fingerprint cache. A corrupt file is treated as empty.
	if err := j.store.Load(); err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			loadErr := fmt.Errorf("runner: load cache: %w", err)
			j.notifyFailure(ctx, loadErr)
			return nil, loadErr
		}
		log.Printf("WARNING: %v (starting with empty cache)", err)
	}
	log.Printf("Loaded fingerprint cache with %d records", j.store.Len())

	// Step 1: Fetch papers
	log.Println("Fetching papers...")
	papers, err := j.fetcher.Fetch(ctx, fetcher.Query{
		Keywords:     j.cfg.Filter.Keywords,
		Categories:   j.cfg.Filter.Categories,
		Mode:         j.cfg.Filter.MatchMode,
		LookbackDays: j.cfg.LookbackDays,
		MaxResults:   j.cfg.MaxResults,
	})
	if err != nil {
		fetchErr := fmt.Errorf("runner: fetch failed: %w", err)
		j.notifyFailure(ctx, fetchErr)
		return nil, fetchErr
	}
	rep.Fetched = len(papers)
	log.Printf("Fetched %d papers", len(papers))

	// Step 2: Deduplicate against the persistent cache
	fresh, duplicates := dedup.Partition(papers, j.store)
	rep.DuplicatesSkipped = len(duplicates)
	log.Printf("Deduplicated: %d new, %d already seen", len(fresh), len(duplicates))

	candidates := fresh
	if j.cfg.IncludeAll {
		candidates = papers
	}

	// Step 3: Classify and select top-N
	classified := classify.ClassifyAll(candidates, j.cfg.Filter)
	rep.Classified = len(classified)

	selected := classify.SelectTopN(classified, j.cfg.TopN)
	rep.Selected = len(selected)
	log.Printf("Classified %d papers, selected %d for summarization", len(classified), len(selected))

	// Step 4: Summarize (bounded-concurrency batches, per-item fallback)
	results := j.orch.SummarizeBatch(ctx, selected)
	for _, r := range results {
		switch r.Source {
		case summarizer.SourceAI:
			rep.SummarizedAI++
		case summarizer.SourceFallback:
			rep.SummarizedFallback++
		default:
			rep.Errors++
		}
	}
	log.Printf("Summarized %d papers (%d AI, %d fallback, %d errors)",
		len(results), rep.SummarizedAI, rep.SummarizedFallback, rep.Errors)

	// Step 5: Evaluate quality and re-rank the digest, strongest papers first.
	if j.eval != nil {
		results = j.eval.EvaluateAll(ctx, results)
		evaluator.Rank(results)
		rep.Evaluated = len(results)
		log.Printf("Evaluated %d papers", len(results))
	}

	// Step 6: Flush the cache. Under the default policy degraded papers stay
	// recorded as seen, so a paper that is hard to summarize is not refetched
	// every day. The "summarized" policy unstages them before the flush, but
	// only fingerprints staged during this run: records persisted by earlier
	// runs are never deleted.
	if j.cfg.SeenPolicy == config.SeenSummarized {
		staged := make(map[string]struct{}, len(fresh))
		for _, p := range fresh {
			staged[dedup.Fingerprint(p)] = struct{}{}
		}
		for _, r := range results {
			if r.Source == summarizer.SourceAI {
				continue
			}
			fp := dedup.Fingerprint(fetcher.Paper{Title: r.Title, Authors: r.Authors})
			if _, ok := staged[fp]; ok {
				j.store.Forget(fp)
			}
		}
	}
	if err := j.store.Flush(); err != nil {
		log.Printf("WARNING: flushing fingerprint cache failed: %v", err)
	}

	// Step 7: Render and persist the digest
	digest := &report.Digest{Date: rep.StartedAt, Results: results, Report: rep}
	if htmlPath, err := report.WriteHTML(j.cfg.Output.Dir, digest); err != nil {
		log.Printf("WARNING: writing digest HTML failed: %v", err)
	} else {
		rep.HTMLPath = htmlPath
		log.Printf("Digest HTML saved to %s", htmlPath)
	}

	// Step 8: Publish - continue with other publishers even if one fails
	var publishErrors []error
	for _, pub := range j.publishers {
		log.Printf("Publishing via %T...", pub)
		if err := pub.Publish(ctx, digest); err != nil {
			publishError := fmt.Errorf("publish via %T failed: %w", pub, err)
			publishErrors = append(publishErrors, publishError)
			log.Printf("WARNING: %v", publishError)
		} else {
			log.Printf("Successfully published via %T", pub)
		}
	}
	rep.EmailSent = len(j.publishers) > 0 && len(publishErrors) < len(j.publishers)
	if len(publishErrors) > 0 {
		rep.SendResult = fmt.Sprintf("%d of %d publishers failed", len(publishErrors), len(j.publishers))
	} else if len(j.publishers) > 0 {
		rep.SendResult = "ok"
	}

	// Step 9: Persist the run report. Write records the report's own path on
	// the document before marshaling it.
	rep.FinishedAt = time.Now().UTC()
	if reportPath, err := report.Write(j.cfg.Output.Dir, rep); err != nil {
		log.Printf("WARNING: writing run report failed: %v", err)
	} else {
		log.Printf("Run report saved to %s", reportPath)
	}

	log.Println("Pipeline completed")
	return rep, nil
}
