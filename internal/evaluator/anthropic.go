package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const evaluationPrompt = `You are a senior academic paper reviewer. Evaluate the paper below on five dimensions, each scored 1-10: innovation (novelty of the method), practicality (value for real problems), technical depth (complexity and theoretical contribution), experimental rigor (soundness of the validation), and impact potential (likely influence on academia or industry). The overall score is a weighted blend with innovation and impact weighted highest; most papers should land between 4 and 7. Respond with strictly this JSON and nothing else:
{"innovation_score": n, "practicality_score": n, "technical_depth_score": n, "experimental_rigor_score": n, "impact_potential_score": n, "overall_score": n, "quality_level": "top|excellent|good|fair|weak", "reasoning": "2-3 concrete sentences", "strengths": ["..."], "weaknesses": ["..."]}`

// summaryMaxLen bounds how much of the summary goes into the prompt.
const summaryMaxLen = 1500

// AnthropicEvaluator scores papers via the Anthropic Messages API, one
// request per paper.
type AnthropicEvaluator struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

func NewAnthropicEvaluator(apiKey, model string, maxTokens int) *AnthropicEvaluator {
	return &AnthropicEvaluator{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   "https://api.anthropic.com/v1/messages",
		// Per-request deadlines come from the caller's context.
		client: &http.Client{},
	}
}

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

func (e *AnthropicEvaluator) Evaluate(ctx context.Context, title, summary string) (Scores, error) {
	if runes := []rune(summary); len(runes) > summaryMaxLen {
		summary = string(runes[:summaryMaxLen])
	}
	prompt := fmt.Sprintf("%s\n\nTitle: %s\n\nSummary: %s", evaluationPrompt, title, summary)

	reqBody := anthropicRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Scores{}, fmt.Errorf("evaluator: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return Scores{}, fmt.Errorf("evaluator: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.client.Do(req)
	if err != nil {
		return Scores{}, fmt.Errorf("evaluator: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Scores{}, fmt.Errorf("evaluator: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Scores{}, fmt.Errorf("evaluator: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Scores{}, fmt.Errorf("evaluator: failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return Scores{}, fmt.Errorf("evaluator: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	if len(apiResp.Content) == 0 {
		return Scores{}, fmt.Errorf("evaluator: empty response")
	}

	return parseScores(apiResp.Content[0].Text)
}

// parseScores extracts the JSON object from the model's reply. Some replies
// wrap the object in prose, so everything outside the outermost braces is
// discarded.
func parseScores(text string) (Scores, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Scores{}, fmt.Errorf("evaluator: no JSON object in response")
	}

	var s Scores
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return Scores{}, fmt.Errorf("evaluator: failed to parse scores: %w", err)
	}

	if s.Overall <= 0 || s.Overall > 10 {
		return Scores{}, fmt.Errorf("evaluator: overall score %.1f out of range", s.Overall)
	}
	if s.Level == "" {
		s.Level = levelFor(s.Overall)
	}
	return s, nil
}
