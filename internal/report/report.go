package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmori/arxiv-digest/internal/summarizer"
)

// RunReport aggregates the counters of a single daily run. It is created once
// per run, written out at the end, and never mutated afterward.
type RunReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched            int `json:"fetched"`
	DuplicatesSkipped  int `json:"duplicates_skipped"`
	Classified         int `json:"classified"`
	Selected           int `json:"selected"`
	SummarizedAI       int `json:"summarized_ai"`
	SummarizedFallback int `json:"summarized_fallback"`
	Errors             int `json:"errors"`
	Evaluated          int `json:"evaluated,omitempty"`

	EmailSent  bool   `json:"email_sent"`
	SendResult string `json:"send_result,omitempty"`

	HTMLPath   string `json:"html_out,omitempty"`
	ReportPath string `json:"report_out,omitempty"`
}

// Digest is what the rendering/sending collaborators consume: the summarized
// papers of one run plus the run date.
type Digest struct {
	Date    time.Time
	Results []summarizer.Result
	Report  *RunReport
}

// Write persists the run report as one JSON document, filename keyed by date.
func Write(dir string, rep *RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("report_%s.json", rep.StartedAt.UTC().Format("20060102")))
	// Recorded before marshaling so the document on disk names itself.
	rep.ReportPath = path
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: writing %s: %w", path, err)
	}
	return path, nil
}

// WriteHTML renders the digest and saves it next to the reports, so a digest
// survives even when email delivery is disabled or fails.
func WriteHTML(dir string, d *Digest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("daily_%s.html", d.Date.UTC().Format("20060102")))
	if err := os.WriteFile(path, []byte(BuildHTML(d)), 0o644); err != nil {
		return "", fmt.Errorf("report: writing %s: %w", path, err)
	}
	return path, nil
}
