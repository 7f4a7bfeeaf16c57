package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kmori/arxiv-digest/internal/config"
	"github.com/kmori/arxiv-digest/internal/fetcher"
)

// UnknownCategory is assigned when a paper matches none of the configured
// categories. Downstream stages always receive a well-formed value.
const UnknownCategory = "unknown"

// Paper is a fetched paper plus its classification. Immutable after scoring.
type Paper struct {
	fetcher.Paper

	TopicCategory   string
	RelevanceScore  float64
	MatchedKeywords []string
	Qualifies       bool
}

// Classify assigns a topic category and a relevance score in [0, 1] according
// to the filter rules. Missing or empty fields never fail classification: the
// paper degrades to the unknown category with a zero score.
func Classify(p fetcher.Paper, rules config.FilterConfig) Paper {
	kwScore, matched := keywordScore(p, rules.Keywords)
	catScore, topic := categoryScore(p, rules.Categories)

	cp := Paper{
		Paper:           p,
		TopicCategory:   topic,
		MatchedKeywords: matched,
	}

	switch rules.MatchMode {
	case config.MatchKeywordOnly:
		cp.RelevanceScore = kwScore
		cp.Qualifies = kwScore > 0
	case config.MatchCategoryOnly:
		cp.RelevanceScore = catScore
		cp.Qualifies = catScore > 0
	case config.MatchAnd:
		// Papers failing either leg are still scored, just non-qualifying.
		cp.RelevanceScore = (kwScore + catScore) / 2
		cp.Qualifies = kwScore > 0 && catScore > 0
	default: // config.MatchOr
		cp.RelevanceScore = kwScore
		if catScore > cp.RelevanceScore {
			cp.RelevanceScore = catScore
		}
		cp.Qualifies = kwScore > 0 || catScore > 0
	}

	if rules.MinScore > 0 && cp.RelevanceScore < rules.MinScore {
		cp.Qualifies = false
	}
	return cp
}

// keywordScore counts word-boundary keyword hits over the title and abstract
// and returns hits/total capped at 1.0, plus the keywords that matched.
func keywordScore(p fetcher.Paper, keywords []string) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}

	text := strings.ToLower(strings.TrimSpace(p.Title) + ". " + strings.TrimSpace(p.Abstract))

	var matched []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`
		if ok, err := regexp.MatchString(pattern, text); err == nil && ok {
			matched = append(matched, kw)
		}
	}

	score := float64(len(matched)) / float64(len(keywords))
	if score > 1.0 {
		score = 1.0
	}
	return score, matched
}

// categoryScore is a binary membership check against the paper's source
// category tags. The topic category is the first configured category the
// paper carries, or "unknown".
func categoryScore(p fetcher.Paper, categories []string) (float64, string) {
	tags := make(map[string]struct{}, len(p.Categories))
	for _, t := range p.Categories {
		tags[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := tags[strings.ToLower(c)]; ok {
			return 1.0, c
		}
	}
	return 0.0, UnknownCategory
}

// ClassifyAll classifies every paper in input order.
func ClassifyAll(papers []fetcher.Paper, rules config.FilterConfig) []Paper {
	out := make([]Paper, len(papers))
	for i, p := range papers {
		out[i] = Classify(p, rules)
	}
	return out
}

// SelectTopN returns the n highest-scoring qualifying papers. Ties break by
// more recent submission date, then by stable input order. n <= 0 keeps all
// qualifying papers.
func SelectTopN(papers []Paper, n int) []Paper {
	var qualifying []Paper
	for _, p := range papers {
		if p.Qualifies {
			qualifying = append(qualifying, p)
		}
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].RelevanceScore != qualifying[j].RelevanceScore {
			return qualifying[i].RelevanceScore > qualifying[j].RelevanceScore
		}
		return qualifying[i].Published.After(qualifying[j].Published)
	})

	if n > 0 && len(qualifying) > n {
		qualifying = qualifying[:n]
	}
	return qualifying
}
