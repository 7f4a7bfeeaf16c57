package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kmori/arxiv-digest/internal/config"
)

// arXiv Atom feed XML structures

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string          `xml:"id"`
	Title     string          `xml:"title"`
	Summary   string          `xml:"summary"`
	Authors   []arxivAuthor   `xml:"author"`
	Links     []arxivLink     `xml:"link"`
	Published string          `xml:"published"`
	Category  []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// ArxivFetcher fetches papers from the arXiv API.
type ArxivFetcher struct {
	client  *http.Client
	baseURL string
}

func NewArxivFetcher() *ArxivFetcher {
	return &ArxivFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "http://export.arxiv.org/api/query",
	}
}

func (f *ArxivFetcher) Fetch(ctx context.Context, q Query) ([]Paper, error) {
	search := buildSearchQuery(q)
	if search == "" {
		return nil, fmt.Errorf("arxiv: empty search query")
	}

	query := url.Values{}
	query.Set("search_query", search)
	query.Set("start", "0")
	query.Set("max_results", fmt.Sprintf("%d", q.MaxResults))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	reqURL := fmt.Sprintf("%s?%s", f.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to read response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: failed to parse XML: %w", err)
	}

	cutoff := q.Cutoff(time.Now())

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		published, _ := time.Parse(time.RFC3339, entry.Published)
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		authors := make([]string, len(entry.Authors))
		for i, a := range entry.Authors {
			authors[i] = strings.TrimSpace(a.Name)
		}

		var paperURL string
		for _, link := range entry.Links {
			if link.Rel == "alternate" || (link.Type == "text/html" && paperURL == "") {
				paperURL = link.Href
			}
		}
		if paperURL == "" && len(entry.Links) > 0 {
			paperURL = entry.Links[0].Href
		}

		categories := make([]string, 0, len(entry.Category))
		for _, c := range entry.Category {
			if c.Term != "" {
				categories = append(categories, c.Term)
			}
		}

		papers = append(papers, Paper{
			ID:         paperIDFromEntry(entry.ID, paperURL),
			Title:      strings.TrimSpace(entry.Title),
			Authors:    authors,
			Abstract:   strings.TrimSpace(entry.Summary),
			URL:        paperURL,
			Published:  published,
			Categories: categories,
		})
	}

	return papers, nil
}

// buildSearchQuery assembles the arXiv search expression from the configured
// keywords and categories according to the match mode. Classification later
// re-scores every paper locally; the upstream query only narrows the intake.
func buildSearchQuery(q Query) string {
	var kwParts, catParts []string
	for _, kw := range q.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kwParts = append(kwParts, fmt.Sprintf("all:%q", kw))
		}
	}
	for _, cat := range q.Categories {
		if cat = strings.TrimSpace(cat); cat != "" {
			catParts = append(catParts, fmt.Sprintf("cat:%s", cat))
		}
	}

	kwExpr := strings.Join(kwParts, " OR ")
	catExpr := strings.Join(catParts, " OR ")

	switch q.Mode {
	case config.MatchKeywordOnly:
		return kwExpr
	case config.MatchCategoryOnly:
		return catExpr
	case config.MatchAnd:
		if kwExpr != "" && catExpr != "" {
			return fmt.Sprintf("(%s) AND (%s)", kwExpr, catExpr)
		}
	}

	// OR mode, and the degenerate AND cases with one side empty.
	switch {
	case kwExpr != "" && catExpr != "":
		return fmt.Sprintf("%s OR %s", kwExpr, catExpr)
	case kwExpr != "":
		return kwExpr
	default:
		return catExpr
	}
}

// paperIDFromEntry extracts the arXiv identifier (e.g. 2510.20820v1) from the
// Atom entry id, falling back to the alternate URL.
func paperIDFromEntry(entryID, paperURL string) string {
	for _, raw := range []string{entryID, paperURL} {
		raw = strings.TrimSpace(raw)
		if idx := strings.Index(raw, "/abs/"); idx >= 0 {
			return raw[idx+len("/abs/"):]
		}
	}
	return strings.TrimSpace(entryID)
}
