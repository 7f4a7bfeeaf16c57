package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/kmori/arxiv-digest/internal/summarizer"
)

// BuildHTML renders the daily digest as a standalone HTML document, used both
// for the email body and the on-disk copy.
func BuildHTML(d *Digest) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
h1 { color: #1a1a2e; border-bottom: 2px solid #e94560; padding-bottom: 10px; }
.counts { background: #f0f0f0; padding: 15px; border-radius: 8px; margin-bottom: 20px; color: #555; }
.paper { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.paper h3 { margin-top: 0; color: #0f3460; }
.meta { color: #666; font-size: 0.9em; margin-bottom: 10px; }
.badge { display: inline-block; background: #16213e; color: #fff; border-radius: 4px; padding: 2px 8px; font-size: 0.8em; margin-right: 6px; }
.fallback { background: #8d6e63; }
.quality { background: #0f3460; }
.keywords { color: #888; font-size: 0.85em; margin-top: 8px; }
.reasoning { color: #777; font-size: 0.85em; margin-top: 6px; font-style: italic; }
</style></head><body>`)

	sb.WriteString(fmt.Sprintf("<h1>arXiv Digest</h1><p><em>%s</em></p>", d.Date.Format("January 2, 2006")))

	if d.Report != nil {
		sb.WriteString(fmt.Sprintf(`<div class="counts">%d fetched, %d duplicates skipped, %d summarized (%d AI, %d fallback, %d errors)</div>`,
			d.Report.Fetched,
			d.Report.DuplicatesSkipped,
			len(d.Results),
			d.Report.SummarizedAI,
			d.Report.SummarizedFallback,
			d.Report.Errors,
		))
	}

	for i, r := range d.Results {
		sb.WriteString(`<div class="paper">`)
		sb.WriteString(fmt.Sprintf(`<h3>%d. <a href="%s">%s</a></h3>`, i+1, html.EscapeString(r.URL), html.EscapeString(r.Title)))
		sb.WriteString(fmt.Sprintf(`<div class="meta">%s</div>`, html.EscapeString(strings.Join(r.Authors, ", "))))
		sb.WriteString(fmt.Sprintf(`<div class="meta"><span class="badge">%s</span>relevance %.2f`, html.EscapeString(r.TopicCategory), r.RelevanceScore))
		if r.QualityLevel != "" {
			sb.WriteString(fmt.Sprintf(` <span class="badge quality">%s %.1f/10</span>`, html.EscapeString(r.QualityLevel), r.QualityScore))
		}
		if r.Source != summarizer.SourceAI {
			sb.WriteString(fmt.Sprintf(` <span class="badge fallback">%s</span>`, html.EscapeString(r.Source)))
		}
		sb.WriteString(`</div>`)
		sb.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(r.Summary)))
		if r.QualityReasoning != "" {
			sb.WriteString(fmt.Sprintf(`<div class="reasoning">%s</div>`, html.EscapeString(r.QualityReasoning)))
		}
		if len(r.MatchedKeywords) > 0 {
			sb.WriteString(fmt.Sprintf(`<div class="keywords">Keywords: %s</div>`, html.EscapeString(strings.Join(r.MatchedKeywords, ", "))))
		}
		sb.WriteString("</div>")
	}

	if len(d.Results) == 0 {
		sb.WriteString("<p>No new papers matched today.</p>")
	}

	sb.WriteString("</body></html>")
	return sb.String()
}
