package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"chara-match/internal/domain"
	"chara-match/internal/retry"
)

type traitExtractUsecase struct {
	llm     domain.LLMClient
	prompts *PromptBuilder
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewTraitExtractor builds the Gemini-backed trait extractor.
func NewTraitExtractor(llm domain.LLMClient, prompts *PromptBuilder, retrier *retry.Retrier, logger *slog.Logger) domain.TraitExtractor {
	return &traitExtractUsecase{
		llm:     llm,
		prompts: prompts,
		retrier: retrier,
		logger:  logger,
	}
}

// Extract prompts the model and parses the reply into trait tokens.
// Only the generation call is retried: an empty or unfinished reply
// counts as a failed attempt, while a completed reply that fails to
// parse is terminal. Both ends wrap domain.ErrTraitExtraction.
func (u *traitExtractUsecase) Extract(ctx context.Context, freeText string) ([]string, error) {
	prompt := u.prompts.BuildTraitExtraction(freeText)

	var reply string
	err := u.retrier.Do(ctx, "trait_extraction", func(ctx context.Context) error {
		resp, err := u.llm.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		if resp.Text == "" {
			return fmt.Errorf("model returned an empty reply")
		}
		if !resp.Done {
			return fmt.Errorf("generation did not finish")
		}
		reply = resp.Text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTraitExtraction, err)
	}

	traits, err := ParseTraitArray(reply)
	if err != nil {
		u.logger.Warn("trait_parse_failed",
			slog.String("error", err.Error()),
			slog.String("reply", truncate(reply, 500)))
		return nil, fmt.Errorf("%w: %v", domain.ErrTraitExtraction, err)
	}

	u.logger.Info("traits_extracted",
		slog.Int("trait_count", len(traits)),
		slog.String("model", u.llm.Version()))
	return traits, nil
}

var _ domain.TraitExtractor = (*traitExtractUsecase)(nil)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
