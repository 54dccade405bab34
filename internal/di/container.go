package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"chara-match/internal/adapter/catalog"
	"chara-match/internal/adapter/genai"
	"chara-match/internal/adapter/match_http"
	"chara-match/internal/domain"
	"chara-match/internal/infra"
	"chara-match/internal/infra/config"
	"chara-match/internal/infra/httpclient"
	"chara-match/internal/retry"
	"chara-match/internal/usecase"
	"chara-match/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the service.
type ApplicationComponents struct {
	// Pipeline
	MatchUsecase usecase.MatchIdealTypeUsecase
	Catalogs     *usecase.CatalogProvider

	// Worker
	Warmer *worker.CatalogWarmer

	// Transport
	Handler *match_http.Handler

	pool *pgxpool.Pool // nil when the catalog comes from files
}

// NewApplicationComponents wires every dependency from config. The
// context bounds the Postgres pool setup; nothing else dials out here.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP clients with connection pooling
	geminiHTTP := httpclient.NewPooledClient(cfg.Gemini.Timeout())
	ollamaHTTP := httpclient.NewPooledClient(cfg.Ollama.Timeout())

	// Generation and embedding clients
	gemini := genai.NewGeminiClient(
		cfg.Gemini.BaseURL,
		cfg.Gemini.Model,
		cfg.Gemini.APIKey,
		cfg.Gemini.Timeout(),
		cfg.Gemini.Delay(),
		log,
		geminiHTTP,
	)
	var encoder domain.VectorEncoder = genai.NewOllamaEmbedder(
		cfg.Ollama.BaseURL,
		cfg.Ollama.EmbedModel,
		cfg.Ollama.Timeout(),
		log,
		ollamaHTTP,
	)
	encoder = genai.NewCachedEncoder(encoder, cfg.Cache.Size, cfg.Cache.TTL(), log)

	// Catalog source
	components := &ApplicationComponents{}
	var source domain.CatalogSource
	switch cfg.Catalog.Source {
	case "postgres":
		pool, err := infra.NewPostgresPool(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		components.pool = pool
		source = catalog.NewPostgresSource(pool, log)
	default:
		source = catalog.NewFileSource(cfg.Catalog.DataPath, cfg.Catalog.EmbeddingsPath, log)
	}
	catalogs := usecase.NewCatalogProvider(source, log)

	// Pipeline stages
	prompts := usecase.NewPromptBuilder()
	retrier := retry.New(retry.Policy{
		MaxAttempts: cfg.Gemini.Retry,
		Delay:       cfg.Gemini.Delay(),
	}, log)
	extractor := usecase.NewTraitExtractor(gemini, prompts, retrier, log)
	composer := usecase.NewReportComposer(gemini, prompts, retrier, log)

	matcher := usecase.NewMatchIdealTypeUsecase(
		extractor,
		encoder,
		domain.NewSimilarityRanker(),
		composer,
		catalogs,
		cfg.Match.TopK,
		log,
	)

	components.MatchUsecase = matcher
	components.Catalogs = catalogs
	components.Warmer = worker.NewCatalogWarmer(catalogs, log)
	components.Handler = match_http.NewHandler(matcher, catalogs)
	return components, nil
}

// Close releases held resources. A file-backed catalog holds none.
func (c *ApplicationComponents) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
