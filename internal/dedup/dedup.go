package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/kmori/arxiv-digest/internal/cache"
	"github.com/kmori/arxiv-digest/internal/fetcher"
)

// authorPrefix bounds how many leading authors take part in the fingerprint,
// so trailing-author reshuffles do not defeat duplicate detection.
const authorPrefix = 3

// Fingerprint derives a deterministic duplicate-detection key from the
// normalized title and the first authors. Two papers with equal fingerprints
// are duplicates regardless of their other fields.
func Fingerprint(p fetcher.Paper) string {
	return hashHex(normalizeTitle(p.Title)) + "_" + hashHex(normalizeAuthors(p.Authors))
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// normalizeTitle lowercases, strips everything but letters, digits and spaces,
// and collapses runs of whitespace.
func normalizeTitle(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeAuthors keeps the first authorPrefix names, normalized and sorted,
// so reordering within the prefix does not change the fingerprint.
func normalizeAuthors(authors []string) string {
	if len(authors) > authorPrefix {
		authors = authors[:authorPrefix]
	}
	parts := make([]string, len(authors))
	for i, a := range authors {
		parts[i] = strings.ToLower(strings.TrimSpace(a))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Partition splits papers into new and already-seen, preserving input order
// within each bucket. New papers are staged into the store but never flushed
// here: recording "seen" is decoupled from processing success, and the caller
// flushes once downstream stages have run.
func Partition(papers []fetcher.Paper, store *cache.Store) (fresh, duplicates []fetcher.Paper) {
	today := time.Now().UTC().Format("2006-01-02")

	for _, p := range papers {
		fp := Fingerprint(p)
		if store.Contains(fp) {
			duplicates = append(duplicates, p)
			continue
		}
		fresh = append(fresh, p)
		store.Add(fp, cache.Record{
			PaperID:   p.ID,
			Title:     p.Title,
			FirstSeen: today,
		})
	}
	return fresh, duplicates
}
