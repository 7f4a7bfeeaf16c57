package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchMode controls how keyword and category rules combine when scoring papers.
type MatchMode string

const (
	MatchOr           MatchMode = "or"
	MatchAnd          MatchMode = "and"
	MatchKeywordOnly  MatchMode = "keyword_only"
	MatchCategoryOnly MatchMode = "category_only"
)

// ParseMatchMode validates a raw mode string from config.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case MatchOr, MatchAnd, MatchKeywordOnly, MatchCategoryOnly:
		return MatchMode(s), nil
	default:
		return "", fmt.Errorf("config: unknown match_mode %q (supported: or, and, keyword_only, category_only)", s)
	}
}

// SeenPolicy decides which new papers get recorded in the fingerprint cache.
// "all" records every new paper even when its summary degraded to a fallback,
// so hard-to-summarize papers are not reprocessed forever. "summarized" records
// only papers that received a real AI summary.
type SeenPolicy string

const (
	SeenAll        SeenPolicy = "all"
	SeenSummarized SeenPolicy = "summarized"
)

type Config struct {
	Schedule     string           `yaml:"schedule"`
	LookbackDays int              `yaml:"lookback_days"`
	TopN         int              `yaml:"top_n"`
	BatchSize    int              `yaml:"batch_size"`
	MaxResults   int              `yaml:"max_results"`
	RunOnStart   bool             `yaml:"run_on_start"`
	IncludeAll   bool             `yaml:"include_all"`
	SeenPolicy   SeenPolicy       `yaml:"seen_policy"`
	Filter       FilterConfig     `yaml:"filter"`
	Fetcher      FetcherConfig    `yaml:"fetcher"`
	Summarizer   SummarizerConfig `yaml:"summarizer"`
	Evaluator    EvaluatorConfig  `yaml:"evaluator"`
	Publisher    PublisherConfig  `yaml:"publisher"`
	Cache        CacheConfig      `yaml:"cache"`
	Output       OutputConfig     `yaml:"output"`
}

// FilterConfig holds the keyword/category rules used both for classification
// and for building the upstream arXiv search query.
type FilterConfig struct {
	Keywords   []string  `yaml:"keywords"`
	Categories []string  `yaml:"categories"`
	MatchMode  MatchMode `yaml:"match_mode"`
	MinScore   float64   `yaml:"min_score"`
}

type FetcherConfig struct {
	Type string `yaml:"type"`
}

type SummarizerConfig struct {
	Type           string `yaml:"type"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// RequestTimeout returns the per-request summarization timeout.
func (s SummarizerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// EvaluatorConfig configures the quality evaluation stage that scores each
// summarized paper. Type "none" disables the stage.
type EvaluatorConfig struct {
	Type           string `yaml:"type"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RequestTimeout returns the per-request evaluation timeout.
func (e EvaluatorConfig) RequestTimeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type PublisherConfig struct {
	Type    string        `yaml:"type"`
	Email   EmailConfig   `yaml:"email"`
	Webhook WebhookConfig `yaml:"webhook"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// WebhookConfig configures the optional run-status notification webhook.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = 3
	}
	if cfg.TopN == 0 {
		cfg.TopN = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 3
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 50
	}
	if cfg.SeenPolicy == "" {
		cfg.SeenPolicy = SeenAll
	}
	if cfg.Filter.MatchMode == "" {
		cfg.Filter.MatchMode = MatchOr
	}
	if cfg.Fetcher.Type == "" {
		cfg.Fetcher.Type = "arxiv"
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "anthropic"
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 1024
	}
	if cfg.Summarizer.TimeoutSeconds == 0 {
		cfg.Summarizer.TimeoutSeconds = 30
	}
	if cfg.Summarizer.MaxAttempts == 0 {
		cfg.Summarizer.MaxAttempts = 1
	}
	if cfg.Evaluator.Type == "" {
		cfg.Evaluator.Type = "anthropic"
	}
	if cfg.Evaluator.Model == "" {
		cfg.Evaluator.Model = cfg.Summarizer.Model
	}
	if cfg.Evaluator.MaxTokens == 0 {
		cfg.Evaluator.MaxTokens = 800
	}
	if cfg.Evaluator.TimeoutSeconds == 0 {
		cfg.Evaluator.TimeoutSeconds = 30
	}
	if cfg.Publisher.Type == "" {
		cfg.Publisher.Type = "stdout"
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/processed_papers.json"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "out"
	}
}

func validate(cfg *Config) error {
	if _, err := ParseMatchMode(string(cfg.Filter.MatchMode)); err != nil {
		return err
	}
	switch cfg.SeenPolicy {
	case SeenAll, SeenSummarized:
	default:
		return fmt.Errorf("config: unknown seen_policy %q (supported: all, summarized)", cfg.SeenPolicy)
	}
	switch cfg.Filter.MatchMode {
	case MatchKeywordOnly:
		if len(cfg.Filter.Keywords) == 0 {
			return fmt.Errorf("config: filter.keywords is required for match_mode keyword_only")
		}
	case MatchCategoryOnly:
		if len(cfg.Filter.Categories) == 0 {
			return fmt.Errorf("config: filter.categories is required for match_mode category_only")
		}
	default:
		if len(cfg.Filter.Keywords) == 0 && len(cfg.Filter.Categories) == 0 {
			return fmt.Errorf("config: at least one of filter.keywords or filter.categories is required")
		}
	}
	switch cfg.Fetcher.Type {
	case "arxiv", "arxiv-html":
	default:
		return fmt.Errorf("config: unsupported fetcher type %q (supported: arxiv, arxiv-html)", cfg.Fetcher.Type)
	}
	if cfg.Summarizer.Type != "anthropic" {
		return fmt.Errorf("config: unsupported summarizer type %q (supported: anthropic)", cfg.Summarizer.Type)
	}
	if cfg.Summarizer.APIKey == "" {
		return fmt.Errorf("config: summarizer.api_key is required (set ANTHROPIC_API_KEY env var)")
	}
	if cfg.Summarizer.MaxAttempts < 1 {
		return fmt.Errorf("config: summarizer.max_attempts must be at least 1")
	}
	switch cfg.Evaluator.Type {
	case "anthropic", "none":
	default:
		return fmt.Errorf("config: unsupported evaluator type %q (supported: anthropic, none)", cfg.Evaluator.Type)
	}
	switch cfg.Publisher.Type {
	case "stdout", "email":
	default:
		return fmt.Errorf("config: unsupported publisher type %q (supported: stdout, email)", cfg.Publisher.Type)
	}
	if cfg.Publisher.Type == "email" {
		if cfg.Publisher.Email.SMTPHost == "" {
			return fmt.Errorf("config: publisher.email.smtp_host is required for email publisher")
		}
		if len(cfg.Publisher.Email.To) == 0 {
			return fmt.Errorf("config: publisher.email.to is required for email publisher")
		}
		if cfg.Publisher.Email.From == "" {
			return fmt.Errorf("config: publisher.email.from is required for email publisher")
		}
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration. A validation failure aborts the run before
// any network calls are made.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
