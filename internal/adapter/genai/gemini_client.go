// Package genai holds the adapters for the hosted and local generative
// services: Gemini for text generation and Ollama for embeddings.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chara-match/internal/domain"
)

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// GeminiClient implements domain.LLMClient via the Gemini REST API.
// Calls are paced by a shared limiter so consecutive generations keep
// the configured minimum interval, matching the free-tier quota.
type GeminiClient struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGeminiClient constructs a new GeminiClient.
// minInterval is the minimum spacing between generation calls; zero
// disables pacing. If client is nil, a default http.Client is created
// with the given timeout.
func NewGeminiClient(baseURL, model, apiKey string, timeout, minInterval time.Duration, logger *slog.Logger, client ...*http.Client) *GeminiClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &GeminiClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		APIKey:  apiKey,
		Client:  c,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Generate sends a single-turn prompt and returns the joined candidate
// text. Done reports whether the model finished normally; a truncated
// reply (finishReason other than STOP) is returned with Done=false so
// the caller can decide to retry.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*domain.LLMResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to pace gemini call: %w", err)
	}

	startTime := time.Now()

	c.logger.Info("gemini_generate_started",
		slog.String("model", c.Model),
		slog.Int("prompt_len", len(prompt)))

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("gemini_generate_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call gemini: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("gemini_generate_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	candidate := genResp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	done := candidate.FinishReason == "" || candidate.FinishReason == "STOP"

	c.logger.Info("gemini_generate_completed",
		slog.String("finish_reason", candidate.FinishReason),
		slog.Int("reply_len", text.Len()),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))

	return &domain.LLMResponse{Text: text.String(), Done: done}, nil
}

// Version returns the model identifier for logging/debugging.
func (c *GeminiClient) Version() string {
	return c.Model
}

var _ domain.LLMClient = (*GeminiClient)(nil)

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
