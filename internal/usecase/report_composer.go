package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"chara-match/internal/domain"
	"chara-match/internal/retry"
)

type reportComposeUsecase struct {
	llm       domain.LLMClient
	prompts   *PromptBuilder
	retrier   *retry.Retrier
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewReportComposer builds the Gemini-backed match-report composer.
func NewReportComposer(llm domain.LLMClient, prompts *PromptBuilder, retrier *retry.Retrier, logger *slog.Logger) domain.ReportComposer {
	return &reportComposeUsecase{
		llm:     llm,
		prompts: prompts,
		retrier: retrier,
		// The report is served as plain markdown text; strip any HTML
		// the model smuggles in.
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Compose narrates the ranked matches. Retry semantics mirror trait
// extraction: generation failures and empty or unfinished replies are
// retried, and terminal failures wrap domain.ErrReportGeneration with
// no partial report.
func (u *reportComposeUsecase) Compose(ctx context.Context, userText string, traits []string, matches []domain.Match) (string, error) {
	prompt := u.prompts.BuildMatchReport(userText, traits, matches)

	var reply string
	err := u.retrier.Do(ctx, "match_report", func(ctx context.Context) error {
		resp, err := u.llm.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp.Text) == "" {
			return fmt.Errorf("model returned an empty reply")
		}
		if !resp.Done {
			return fmt.Errorf("generation did not finish")
		}
		reply = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReportGeneration, err)
	}

	report := u.clean(reply)
	if report == "" {
		return "", fmt.Errorf("%w: reply was empty after sanitization", domain.ErrReportGeneration)
	}

	u.logger.Info("report_composed",
		slog.Int("report_len", len(report)),
		slog.String("model", u.llm.Version()))
	return report, nil
}

// clean strips HTML tags, restores entities the sanitizer escaped, and
// trims the edges. Markdown line structure is preserved.
func (u *reportComposeUsecase) clean(reply string) string {
	sanitized := u.sanitizer.Sanitize(reply)
	return strings.TrimSpace(html.UnescapeString(sanitized))
}

var _ domain.ReportComposer = (*reportComposeUsecase)(nil)
