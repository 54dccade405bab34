package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chara-match/internal/domain"
)

// MatchIdealTypeInput is the request for one matching run. TopK of
// zero means "use the configured default".
type MatchIdealTypeInput struct {
	Description string
	TopK        int
}

// RankedMatch is one presentation-ready match with its 1-based rank.
type RankedMatch struct {
	Rank      int
	Character domain.CharacterRecord
	Result    domain.MatchResult
}

// MatchIdealTypeOutput carries everything the caller needs to render a
// match: the extracted traits, the ranked matches, and the narrative
// report. MatchSetID ties log lines of one run together.
type MatchIdealTypeOutput struct {
	MatchSetID string
	Traits     []string
	Matches    []RankedMatch
	Report     string
}

// MatchIdealTypeUsecase runs the full pipeline: trait extraction,
// query embedding, similarity ranking, and report generation.
type MatchIdealTypeUsecase interface {
	Execute(ctx context.Context, input MatchIdealTypeInput) (*MatchIdealTypeOutput, error)
}

type matchIdealTypeUsecase struct {
	extractor domain.TraitExtractor
	encoder   domain.VectorEncoder
	ranker    domain.SimilarityRanker
	composer  domain.ReportComposer
	catalogs  *CatalogProvider
	defaultK  int
	logger    *slog.Logger
}

// NewMatchIdealTypeUsecase wires the pipeline stages together.
func NewMatchIdealTypeUsecase(
	extractor domain.TraitExtractor,
	encoder domain.VectorEncoder,
	ranker domain.SimilarityRanker,
	composer domain.ReportComposer,
	catalogs *CatalogProvider,
	defaultK int,
	logger *slog.Logger,
) MatchIdealTypeUsecase {
	return &matchIdealTypeUsecase{
		extractor: extractor,
		encoder:   encoder,
		ranker:    ranker,
		composer:  composer,
		catalogs:  catalogs,
		defaultK:  defaultK,
		logger:    logger,
	}
}

// Execute runs the stages in order and fails fast: no partial output
// is returned, and the stage errors keep their domain sentinels so the
// transport layer can map them to status codes.
func (u *matchIdealTypeUsecase) Execute(ctx context.Context, input MatchIdealTypeInput) (*MatchIdealTypeOutput, error) {
	matchSetID := uuid.NewString()

	topK := input.TopK
	if topK == 0 {
		topK = u.defaultK
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}

	u.logger.Info("match_started",
		slog.String("match_set_id", matchSetID),
		slog.Int("top_k", topK),
		slog.Int("description_len", len(input.Description)))

	// The catalog gate comes first so a cold catalog fails cheaply,
	// before any generation quota is spent.
	catalog, err := u.catalogs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	traits, err := u.extractor.Extract(ctx, input.Description)
	if err != nil {
		u.logger.Error("match_failed",
			slog.String("match_set_id", matchSetID),
			slog.String("stage", "trait_extraction"),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to extract traits: %w", err)
	}

	// The query is the traits joined into one text, embedded as a
	// single vector, not one vector per trait.
	queryText := strings.Join(traits, "; ")
	vectors, err := u.encoder.Encode(ctx, []string{queryText})
	if err != nil {
		u.logger.Error("match_failed",
			slog.String("match_set_id", matchSetID),
			slog.String("stage", "embedding"),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: encoder returned no query vector", domain.ErrEmbedding)
	}

	results, err := u.ranker.Rank(vectors[0], catalog, topK)
	if err != nil {
		u.logger.Error("match_failed",
			slog.String("match_set_id", matchSetID),
			slog.String("stage", "ranking"),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to rank matches: %w", err)
	}

	matches := make([]RankedMatch, len(results))
	domainMatches := make([]domain.Match, len(results))
	for i, result := range results {
		record, ok := catalog.RecordByID(result.CharacterID)
		if !ok {
			return nil, fmt.Errorf("ranked character id %d missing from catalog", result.CharacterID)
		}
		matches[i] = RankedMatch{Rank: i + 1, Character: record, Result: result}
		domainMatches[i] = domain.Match{Character: record, Result: result}
	}

	report, err := u.composer.Compose(ctx, input.Description, traits, domainMatches)
	if err != nil {
		u.logger.Error("match_failed",
			slog.String("match_set_id", matchSetID),
			slog.String("stage", "report"),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to compose report: %w", err)
	}

	u.logger.Info("match_completed",
		slog.String("match_set_id", matchSetID),
		slog.Int("trait_count", len(traits)),
		slog.Int("match_count", len(matches)))

	return &MatchIdealTypeOutput{
		MatchSetID: matchSetID,
		Traits:     traits,
		Matches:    matches,
		Report:     report,
	}, nil
}

var _ MatchIdealTypeUsecase = (*matchIdealTypeUsecase)(nil)
