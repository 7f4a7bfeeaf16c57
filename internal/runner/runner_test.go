package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kmori/arxiv-digest/internal/cache"
	"github.com/kmori/arxiv-digest/internal/config"
	"github.com/kmori/arxiv-digest/internal/dedup"
	"github.com/kmori/arxiv-digest/internal/evaluator"
	"github.com/kmori/arxiv-digest/internal/fetcher"
	"github.com/kmori/arxiv-digest/internal/publisher"
	"github.com/kmori/arxiv-digest/internal/report"
	"github.com/kmori/arxiv-digest/internal/summarizer"
)

type mockFetcher struct {
	papers []fetcher.Paper
	err    error
}

func (m *mockFetcher) Fetch(ctx context.Context, q fetcher.Query) ([]fetcher.Paper, error) {
	return m.papers, m.err
}

type mockSummarizer struct {
	failFor map[string]bool
}

func (m *mockSummarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	if m.failFor[title] {
		return "", errors.New("remote service unavailable")
	}
	return "AI summary of " + title, nil
}

type recordingPublisher struct {
	digest *report.Digest
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, d *report.Digest) error {
	p.digest = d
	return p.err
}

type mockQualityEvaluator struct {
	scoreFor map[string]float64
}

func (m *mockQualityEvaluator) Evaluate(ctx context.Context, title, summary string) (evaluator.Scores, error) {
	score := m.scoreFor[title]
	if score == 0 {
		score = 5
	}
	return evaluator.Scores{Overall: score, Level: "good", Reasoning: "Assessment of " + title + "."}, nil
}

// statusRecorder is a publisher that also tracks lifecycle notifications.
type statusRecorder struct {
	recordingPublisher
	started bool
	failed  error
}

func (s *statusRecorder) NotifyStart(ctx context.Context, lookbackDays, topN int) error {
	s.started = true
	return nil
}

func (s *statusRecorder) NotifyFailure(ctx context.Context, runErr error) error {
	s.failed = runErr
	return nil
}

func testPapers() []fetcher.Paper {
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	return []fetcher.Paper{
		{ID: "1", Title: "Deep Denoising Networks", Authors: []string{"Alice Young"}, Abstract: "We study denoising.", Published: day, Categories: []string{"cs.CV"}},
		{ID: "2", Title: "Denoising With Transformers", Authors: []string{"Bob Chen"}, Abstract: "Denoising via attention.", Published: day, Categories: []string{"cs.CV"}},
		{ID: "3", Title: "Unrelated Lattice Results", Authors: []string{"Carol Diaz"}, Abstract: "Nothing relevant.", Published: day, Categories: []string{"hep-lat"}},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		LookbackDays: 3,
		TopN:         10,
		BatchSize:    2,
		MaxResults:   50,
		SeenPolicy:   config.SeenAll,
		Filter: config.FilterConfig{
			Keywords:  []string{"denoising"},
			MatchMode: config.MatchOr,
		},
	}
	cfg.Cache.Path = filepath.Join(dir, "cache", "processed_papers.json")
	cfg.Output.Dir = filepath.Join(dir, "out")
	return cfg
}

func newTestJob(t *testing.T, cfg *config.Config, f fetcher.Fetcher, s summarizer.Summarizer, pubs []publisher.Publisher) (*Job, *cache.Store) {
	t.Helper()
	orch := summarizer.NewOrchestrator(s, cfg.BatchSize, time.Second, 1)
	store := cache.NewStore(cfg.Cache.Path)
	return New(cfg, f, orch, nil, store, pubs), store
}

func TestRunFullPipeline(t *testing.T) {
	cfg := testConfig(t)
	pub := &recordingPublisher{}
	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, &mockSummarizer{}, []publisher.Publisher{pub})

	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if rep.Fetched != 3 {
		t.Errorf("Expected 3 fetched, got %d", rep.Fetched)
	}
	if rep.DuplicatesSkipped != 0 {
		t.Errorf("Expected no duplicates on first run, got %d", rep.DuplicatesSkipped)
	}
	if rep.Selected != 2 {
		t.Errorf("Only matching papers should be selected, got %d", rep.Selected)
	}
	if rep.SummarizedAI != 2 || rep.SummarizedFallback != 0 || rep.Errors != 0 {
		t.Errorf("Unexpected summary counters: %+v", rep)
	}
	if !rep.EmailSent || rep.SendResult != "ok" {
		t.Errorf("Publishing should be reported as ok, got sent=%v result=%q", rep.EmailSent, rep.SendResult)
	}

	if pub.digest == nil {
		t.Fatal("Publisher was never called")
	}
	if len(pub.digest.Results) != 2 {
		t.Errorf("Digest should carry the selected papers, got %d", len(pub.digest.Results))
	}

	if _, err := os.Stat(rep.HTMLPath); err != nil {
		t.Errorf("Digest HTML missing: %v", err)
	}
	if _, err := os.Stat(rep.ReportPath); err != nil {
		t.Errorf("Run report missing: %v", err)
	}
	if _, err := os.Stat(cfg.Cache.Path); err != nil {
		t.Errorf("Fingerprint cache not flushed: %v", err)
	}
}

func TestRunSecondRunSkipsDuplicates(t *testing.T) {
	cfg := testConfig(t)
	papers := testPapers()

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, &mockSummarizer{}, nil)
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	job2, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, &mockSummarizer{}, nil)
	rep, err := job2.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if rep.DuplicatesSkipped != 3 {
		t.Errorf("All papers should be duplicates on the second run, got %d", rep.DuplicatesSkipped)
	}
	if rep.Selected != 0 {
		t.Errorf("No papers should be selected on the second run, got %d", rep.Selected)
	}
}

// A paper whose summarization degrades to fallback is still recorded as seen
// under the default policy, so the next run does not reprocess it.
func TestRunDegradedPaperStillMarkedSeen(t *testing.T) {
	cfg := testConfig(t)
	failing := &mockSummarizer{failFor: map[string]bool{"Deep Denoising Networks": true}}

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, failing, nil)
	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.SummarizedFallback != 1 {
		t.Fatalf("Expected 1 fallback result, got %d", rep.SummarizedFallback)
	}

	store := cache.NewStore(cfg.Cache.Path)
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to reload cache: %v", err)
	}
	fp := dedup.Fingerprint(fetcher.Paper{Title: "Deep Denoising Networks", Authors: []string{"Alice Young"}})
	if !store.Contains(fp) {
		t.Error("Degraded paper must still be recorded as seen")
	}
}

func TestRunSummarizedPolicyForgetsDegraded(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeenPolicy = config.SeenSummarized
	failing := &mockSummarizer{failFor: map[string]bool{"Deep Denoising Networks": true}}

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, failing, nil)
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := cache.NewStore(cfg.Cache.Path)
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to reload cache: %v", err)
	}

	degraded := dedup.Fingerprint(fetcher.Paper{Title: "Deep Denoising Networks", Authors: []string{"Alice Young"}})
	if store.Contains(degraded) {
		t.Error("Degraded paper should not be recorded under the summarized policy")
	}
	summarized := dedup.Fingerprint(fetcher.Paper{Title: "Denoising With Transformers", Authors: []string{"Bob Chen"}})
	if !store.Contains(summarized) {
		t.Error("Successfully summarized paper should still be recorded")
	}
}

func TestRunIncludeAllBypassesDedup(t *testing.T) {
	cfg := testConfig(t)
	papers := testPapers()

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, &mockSummarizer{}, nil)
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	cfg.IncludeAll = true
	job2, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, &mockSummarizer{}, nil)
	rep, err := job2.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if rep.Selected != 2 {
		t.Errorf("include-all should reprocess seen papers, got %d selected", rep.Selected)
	}
	if rep.DuplicatesSkipped != 3 {
		t.Errorf("Duplicates should still be counted, got %d", rep.DuplicatesSkipped)
	}
}

func TestRunFetchErrorAborts(t *testing.T) {
	cfg := testConfig(t)
	job, _ := newTestJob(t, cfg, &mockFetcher{err: errors.New("network down")}, &mockSummarizer{}, nil)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("Fetch failure should abort the run")
	}
}

// Records persisted by earlier runs are never deleted by the summarized seen
// policy, even when include-all feeds an already-seen paper into a failing
// summarization.
func TestRunSummarizedPolicyKeepsPriorRecords(t *testing.T) {
	cfg := testConfig(t)
	papers := testPapers()

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, &mockSummarizer{}, nil)
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	cfg.SeenPolicy = config.SeenSummarized
	cfg.IncludeAll = true
	failing := &mockSummarizer{failFor: map[string]bool{"Deep Denoising Networks": true}}
	job2, _ := newTestJob(t, cfg, &mockFetcher{papers: papers}, failing, nil)
	if _, err := job2.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	store := cache.NewStore(cfg.Cache.Path)
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to reload cache: %v", err)
	}
	fp := dedup.Fingerprint(fetcher.Paper{Title: "Deep Denoising Networks", Authors: []string{"Alice Young"}})
	if !store.Contains(fp) {
		t.Error("A record from an earlier run must survive a degraded reprocessing")
	}
}

func TestRunEvaluatesAndRanks(t *testing.T) {
	cfg := testConfig(t)
	pub := &recordingPublisher{}
	orch := summarizer.NewOrchestrator(&mockSummarizer{}, cfg.BatchSize, time.Second, 1)
	eval := evaluator.NewOrchestrator(&mockQualityEvaluator{scoreFor: map[string]float64{
		"Deep Denoising Networks":     3,
		"Denoising With Transformers": 9,
	}}, cfg.BatchSize, time.Second)
	store := cache.NewStore(cfg.Cache.Path)
	job := New(cfg, &mockFetcher{papers: testPapers()}, orch, eval, store, []publisher.Publisher{pub})

	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if rep.Evaluated != 2 {
		t.Errorf("Expected 2 evaluated papers, got %d", rep.Evaluated)
	}
	if len(pub.digest.Results) != 2 {
		t.Fatalf("Expected 2 results in the digest, got %d", len(pub.digest.Results))
	}
	if pub.digest.Results[0].Title != "Denoising With Transformers" {
		t.Errorf("Digest should be ordered by quality, got %q first", pub.digest.Results[0].Title)
	}
	for _, r := range pub.digest.Results {
		if r.QualityScore == 0 || r.QualityLevel == "" {
			t.Errorf("Result %q missing quality fields", r.Title)
		}
		if r.TopicCategory == "" {
			t.Errorf("Result %q lost its classification metadata", r.Title)
		}
	}
}

func TestRunNotifiesLifecycle(t *testing.T) {
	cfg := testConfig(t)
	rec := &statusRecorder{}
	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, &mockSummarizer{}, []publisher.Publisher{rec})

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !rec.started {
		t.Error("Run should announce its start")
	}
	if rec.failed != nil {
		t.Errorf("Successful run should not announce a failure, got %v", rec.failed)
	}
	if rec.digest == nil {
		t.Error("Run should still publish the digest")
	}
}

func TestRunNotifiesFailure(t *testing.T) {
	cfg := testConfig(t)
	rec := &statusRecorder{}
	job, _ := newTestJob(t, cfg, &mockFetcher{err: errors.New("network down")}, &mockSummarizer{}, []publisher.Publisher{rec})

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("Fetch failure should abort the run")
	}
	if !rec.started {
		t.Error("Aborted run should still have announced its start")
	}
	if rec.failed == nil {
		t.Error("Aborted run should announce the failure")
	}
}

func TestRunToleratesCorruptCache(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Cache.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, &mockSummarizer{}, nil)
	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Corrupt cache must not abort the run: %v", err)
	}
	if rep.Fetched != 3 {
		t.Errorf("Run should proceed with an empty cache, got %d fetched", rep.Fetched)
	}

	// The corrupt file is replaced by a valid one on flush.
	store := cache.NewStore(cfg.Cache.Path)
	if err := store.Load(); err != nil {
		t.Fatalf("Flushed cache should be readable: %v", err)
	}
	if store.Len() == 0 {
		t.Error("Flushed cache should hold this run's fingerprints")
	}
}

func TestRunPublisherFailureIsSoft(t *testing.T) {
	cfg := testConfig(t)
	failing := &recordingPublisher{err: errors.New("smtp down")}
	working := &recordingPublisher{}

	job, _ := newTestJob(t, cfg, &mockFetcher{papers: testPapers()}, &mockSummarizer{}, []publisher.Publisher{failing, working})
	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Publisher failure must not abort the run: %v", err)
	}

	if working.digest == nil {
		t.Error("Remaining publishers should still run after one fails")
	}
	if !rep.EmailSent {
		t.Error("Partial publishing success should count as sent")
	}
	if rep.SendResult != "1 of 2 publishers failed" {
		t.Errorf("Unexpected send result %q", rep.SendResult)
	}
}

func TestRunEmptyIntake(t *testing.T) {
	cfg := testConfig(t)
	pub := &recordingPublisher{}
	job, _ := newTestJob(t, cfg, &mockFetcher{}, &mockSummarizer{}, []publisher.Publisher{pub})

	rep, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Fetched != 0 || rep.Selected != 0 {
		t.Errorf("Expected an empty run, got %+v", rep)
	}
	if pub.digest == nil {
		t.Error("Empty digests are still published")
	}
}
