package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmori/arxiv-digest/internal/report"
	"github.com/kmori/arxiv-digest/internal/summarizer"
)

// StdoutPublisher prints the digest to stdout.
type StdoutPublisher struct{}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{}
}

func (p *StdoutPublisher) Publish(_ context.Context, digest *report.Digest) error {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("arXiv Digest: %s\n", digest.Date.Format("2006-01-02"))
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()

	for i, r := range digest.Results {
		fmt.Println(strings.Repeat("-", 72))
		fmt.Printf("%d. %s\n", i+1, r.Title)
		fmt.Printf("   Authors: %s\n", strings.Join(r.Authors, ", "))
		fmt.Printf("   URL: %s\n", r.URL)
		fmt.Printf("   Topic: %s (relevance %.2f)\n", r.TopicCategory, r.RelevanceScore)
		if r.Source != summarizer.SourceAI {
			fmt.Printf("   Summary source: %s\n", r.Source)
		}
		fmt.Println()
		fmt.Printf("   %s\n", r.Summary)
		fmt.Println()
	}

	if len(digest.Results) == 0 {
		fmt.Println("No new papers matched today.")
	}

	fmt.Println(strings.Repeat("=", 72))
	return nil
}
