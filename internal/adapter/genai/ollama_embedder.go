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

	"chara-match/internal/domain"
)

// OllamaEmbedder implements domain.VectorEncoder via the Ollama batch
// embed endpoint.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewOllamaEmbedder constructs a new OllamaEmbedder. If client is nil,
// a default http.Client is created with the given timeout.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *OllamaEmbedder {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &OllamaEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Encode embeds texts in a single batch call, preserving input order.
func (e *OllamaEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Info("ollama_embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model),
		slog.String("url", e.BaseURL))
	start := time.Now()

	reqBody := embedRequest{
		Model: e.Model,
		Input: texts,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.Error("ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: failed to call ollama: %v", domain.ErrEmbedding, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e.logger.Error("ollama_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: ollama returned status %d", domain.ErrEmbedding, resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrEmbedding, err)
	}

	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			domain.ErrEmbedding, len(respBody.Embeddings), len(texts))
	}

	e.logger.Info("ollama_embed_completed",
		slog.Int("embedding_count", len(respBody.Embeddings)),
		slog.Duration("elapsed", time.Since(start)))

	return respBody.Embeddings, nil
}

// Version returns the embedding model identifier. Mixing vectors from
// different models is meaningless, so callers key caches on this.
func (e *OllamaEmbedder) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*OllamaEmbedder)(nil)
