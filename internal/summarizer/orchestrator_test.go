package summarizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kmori/arxiv-digest/internal/classify"
	"github.com/kmori/arxiv-digest/internal/fetcher"
)

// mockSummarizer fails for configured titles and records call counts and the
// peak number of concurrent in-flight requests.
type mockSummarizer struct {
	mu       sync.Mutex
	failFor  map[string]bool
	delayFor map[string]time.Duration
	calls    map[string]int
	inFlight int
	peak     int
}

func newMockSummarizer() *mockSummarizer {
	return &mockSummarizer{
		failFor:  map[string]bool{},
		delayFor: map[string]time.Duration{},
		calls:    map[string]int{},
	}
}

func (m *mockSummarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	m.mu.Lock()
	m.calls[title]++
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	delay := m.delayFor[title]
	fail := m.failFor[title]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fail {
		return "", errors.New("remote service unavailable")
	}
	return "AI summary of " + title, nil
}

func classifiedPapers(titles ...string) []classify.Paper {
	papers := make([]classify.Paper, len(titles))
	for i, title := range titles {
		papers[i] = classify.Paper{
			Paper: fetcher.Paper{
				ID:       title,
				Title:    title,
				Abstract: "Abstract of " + title + ".",
			},
			TopicCategory:  "cs.CV",
			RelevanceScore: 0.5 + float64(i)/10,
		}
	}
	return papers
}

func TestSummarizeBatchCardinalityAndOrder(t *testing.T) {
	mock := newMockSummarizer()
	o := NewOrchestrator(mock, 2, time.Second, 1)

	papers := classifiedPapers("p1", "p2", "p3", "p4", "p5")
	results := o.SummarizeBatch(context.Background(), papers)

	if len(results) != len(papers) {
		t.Fatalf("Expected %d results, got %d", len(papers), len(results))
	}
	for i, r := range results {
		if r.PaperID != papers[i].ID {
			t.Errorf("Result %d out of order: got %s, want %s", i, r.PaperID, papers[i].ID)
		}
		if r.Source != SourceAI {
			t.Errorf("Result %d: expected ai source, got %s", i, r.Source)
		}
	}
}

func TestSummarizeBatchSingleFailureFallsBack(t *testing.T) {
	mock := newMockSummarizer()
	mock.failFor["p2"] = true
	o := NewOrchestrator(mock, 2, time.Second, 1)

	results := o.SummarizeBatch(context.Background(), classifiedPapers("p1", "p2", "p3"))

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Source != SourceAI || results[2].Source != SourceAI {
		t.Errorf("Siblings of a failed item must still succeed, got %s and %s", results[0].Source, results[2].Source)
	}
	if results[1].Source != SourceFallback {
		t.Fatalf("Failed item should degrade to fallback, got %s", results[1].Source)
	}
	if !strings.HasPrefix(results[1].Summary, "Abstract of p2") {
		t.Errorf("Fallback summary should be the abstract prefix, got %q", results[1].Summary)
	}
}

func TestSummarizeBatchMergeInvariant(t *testing.T) {
	mock := newMockSummarizer()
	mock.failFor["p2"] = true
	o := NewOrchestrator(mock, 3, time.Second, 1)

	papers := classifiedPapers("p1", "p2", "p3")
	papers[1].Abstract = "" // forces the error marker for the failing paper
	papers[1].MatchedKeywords = []string{"denoising"}

	results := o.SummarizeBatch(context.Background(), papers)

	for i, r := range results {
		if r.TopicCategory != papers[i].TopicCategory {
			t.Errorf("Result %d dropped topic category: got %q, want %q", i, r.TopicCategory, papers[i].TopicCategory)
		}
		if r.RelevanceScore != papers[i].RelevanceScore {
			t.Errorf("Result %d changed relevance score: got %f, want %f", i, r.RelevanceScore, papers[i].RelevanceScore)
		}
	}
	if results[1].Source != SourceError {
		t.Errorf("Empty abstract after failure should yield the error marker, got %s", results[1].Source)
	}
	if results[1].Summary != "" {
		t.Errorf("Error results carry an empty summary, got %q", results[1].Summary)
	}
}

func TestSummarizeBatchTimeoutIsolation(t *testing.T) {
	mock := newMockSummarizer()
	mock.delayFor["p1"] = 500 * time.Millisecond
	o := NewOrchestrator(mock, 3, 50*time.Millisecond, 1)

	results := o.SummarizeBatch(context.Background(), classifiedPapers("p1", "p2", "p3"))

	if results[0].Source != SourceFallback {
		t.Errorf("Timed-out item should fall back, got %s", results[0].Source)
	}
	if results[1].Source != SourceAI || results[2].Source != SourceAI {
		t.Errorf("A timeout must not affect siblings, got %s and %s", results[1].Source, results[2].Source)
	}
}

func TestSummarizeBatchBoundsConcurrency(t *testing.T) {
	mock := newMockSummarizer()
	for _, title := range []string{"p1", "p2", "p3", "p4", "p5"} {
		mock.delayFor[title] = 20 * time.Millisecond
	}
	o := NewOrchestrator(mock, 2, time.Second, 1)

	o.SummarizeBatch(context.Background(), classifiedPapers("p1", "p2", "p3", "p4", "p5"))

	if mock.peak > 2 {
		t.Errorf("At most batch_size requests may be outstanding, saw %d", mock.peak)
	}
}

func TestSummarizeBatchNoRetryByDefault(t *testing.T) {
	mock := newMockSummarizer()
	mock.failFor["p1"] = true
	o := NewOrchestrator(mock, 1, time.Second, 1)

	o.SummarizeBatch(context.Background(), classifiedPapers("p1"))

	if got := mock.calls["p1"]; got != 1 {
		t.Errorf("Default policy is a single attempt, got %d calls", got)
	}
}

func TestSummarizeBatchHonorsAttemptBudget(t *testing.T) {
	mock := newMockSummarizer()
	mock.failFor["p1"] = true
	o := NewOrchestrator(mock, 1, time.Second, 2)
	o.retryCfg.BaseDelay = time.Millisecond

	results := o.SummarizeBatch(context.Background(), classifiedPapers("p1"))

	if got := mock.calls["p1"]; got != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", got)
	}
	if results[0].Source != SourceFallback {
		t.Errorf("Exhausted attempts should fall back, got %s", results[0].Source)
	}
}

func TestSummarizeBatchEmptyInput(t *testing.T) {
	o := NewOrchestrator(newMockSummarizer(), 3, time.Second, 1)
	results := o.SummarizeBatch(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected no results for empty input, got %d", len(results))
	}
}

func TestFallbackSummaryTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := fallbackSummary(long, 30)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Long abstracts should be ellipsized, got %q", got)
	}

	if got := fallbackSummary("short abstract", 30); got != "short abstract" {
		t.Errorf("Short abstracts pass through unchanged, got %q", got)
	}

	if got := fallbackSummary("   ", 30); got != "" {
		t.Errorf("Blank abstract yields empty fallback, got %q", got)
	}
}
