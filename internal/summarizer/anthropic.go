package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultPrompt = `You are an academic paper summarization expert. Summarize the core ideas of the paper below, covering: 1) the research problem 2) the method 3) the main contribution 4) the experimental results. Keep it to 3-4 sentences, concise and academic. Respond with the summary text only.`

// AnthropicSummarizer uses the Anthropic Messages API to summarize one paper
// per request.
type AnthropicSummarizer struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

func NewAnthropicSummarizer(apiKey, model string, maxTokens int) *AnthropicSummarizer {
	return &AnthropicSummarizer{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   "https://api.anthropic.com/v1/messages",
		// Per-request deadlines come from the caller's context; the
		// orchestrator owns the timeout policy.
		client: &http.Client{},
	}
}

// Anthropic API request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nTitle: %s\n\nAbstract: %s", defaultPrompt, title, abstract)

	reqBody := anthropicRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	if len(apiResp.Content) == 0 || strings.TrimSpace(apiResp.Content[0].Text) == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}

	return strings.TrimSpace(apiResp.Content[0].Text), nil
}
