package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const arxivListBaseURL = "https://arxiv.org"

var listDateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivListFetcher scrapes arXiv category listing pages (/list/<cat>/recent).
// The listing trails the API by less than the API trails new submissions, so
// this fetcher is useful on days when the API window lags. Keywords are not
// part of listing URLs; keyword relevance is applied downstream by the
// classifier.
type ArxivListFetcher struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

func NewArxivListFetcher(client *http.Client) *ArxivListFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivListFetcher{client: client, baseURL: arxivListBaseURL, pageSize: 100}
}

func (f *ArxivListFetcher) Fetch(ctx context.Context, q Query) ([]Paper, error) {
	if len(q.Categories) == 0 {
		return nil, fmt.Errorf("arxiv-html: no categories configured")
	}

	cutoff := q.Cutoff(time.Now())
	seen := map[string]struct{}{}
	var papers []Paper

	for _, cat := range q.Categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}

		skip := 0
		for {
			pageURL, err := f.buildPageURL(cat, skip)
			if err != nil {
				return nil, fmt.Errorf("arxiv-html: category %s: %w", cat, err)
			}

			doc, err := f.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("arxiv-html: category %s: %w", cat, err)
			}

			pagePapers, more := f.extractPapers(doc, cat, cutoff)
			for _, p := range pagePapers {
				if _, ok := seen[p.ID]; ok {
					continue
				}
				seen[p.ID] = struct{}{}
				papers = append(papers, p)
			}

			if !more || (q.MaxResults > 0 && len(papers) >= q.MaxResults) {
				break
			}
			skip += f.pageSize
		}
	}

	if q.MaxResults > 0 && len(papers) > q.MaxResults {
		papers = papers[:q.MaxResults]
	}
	return papers, nil
}

func (f *ArxivListFetcher) buildPageURL(category string, skip int) (string, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/list/%s/recent", f.baseURL, category))
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(f.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (f *ArxivListFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "arxiv-digest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// extractPapers walks the dt/dd listing entries, keeping papers submitted at
// or after the cutoff day. It reports whether older pages might still contain
// entries within the window.
func (f *ArxivListFetcher) extractPapers(doc *goquery.Document, category string, cutoff time.Time) ([]Paper, bool) {
	var (
		collected []Paper
		more      = true
		processed int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, ok := f.parseEntry(dt, dd, category)
		if !ok {
			return true
		}

		day := paper.Published.UTC().Truncate(24 * time.Hour)
		if day.Before(cutoff) {
			more = false
			return false
		}
		collected = append(collected, paper)
		return true
	})

	if processed < f.pageSize {
		more = false
	}
	return collected, more
}

func (f *ArxivListFetcher) parseEntry(dt, dd *goquery.Selection, category string) (Paper, bool) {
	link := dt.Find(`a[href*="/abs/"]`).First()

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	href, _ := link.Attr("href")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if id == "" {
		return Paper{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(f.baseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find(".mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	published := time.Now().UTC()
	if match := listDateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			published = parsed
		}
	}

	return Paper{
		ID:         id,
		Title:      title,
		Authors:    authors,
		Abstract:   abstract,
		URL:        href,
		Published:  published,
		Categories: []string{category},
	}, true
}
