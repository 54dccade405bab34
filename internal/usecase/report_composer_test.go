package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chara-match/internal/domain"
	"chara-match/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleMatches() []domain.Match {
	return []domain.Match{
		{
			Character: domain.CharacterRecord{ID: 1, Name: "雷姆", MoeTraits: []string{"女僕", "獻身"}},
			Result:    domain.MatchResult{CharacterID: 1, RawSimilarity: 0.91, ScaledScore: 100},
		},
		{
			Character: domain.CharacterRecord{ID: 7, Name: "明日香", MoeTraits: []string{"傲嬌"}},
			Result:    domain.MatchResult{CharacterID: 7, RawSimilarity: 0.84, ScaledScore: 62.5},
		},
	}
}

func TestReportComposer_Compose_Success(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		// The prompt carries the user text, the trait list, and the
		// rescaled scores with one decimal.
		return strings.Contains(prompt, "喜歡溫柔的女僕") &&
			strings.Contains(prompt, `["溫柔","女僕"]`) &&
			strings.Contains(prompt, `("雷姆", "100.0")`) &&
			strings.Contains(prompt, `("明日香", "62.5")`)
	})).Return(&domain.LLMResponse{Text: "  💖 最符合你理想型的是雷姆！\n\n其次是明日香。  ", Done: true}, nil).Once()

	composer := usecase.NewReportComposer(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	report, err := composer.Compose(context.Background(), "喜歡溫柔的女僕", []string{"溫柔", "女僕"}, sampleMatches())
	require.NoError(t, err)
	assert.Equal(t, "💖 最符合你理想型的是雷姆！\n\n其次是明日香。", report)
	mockLLM.AssertExpectations(t)
}

func TestReportComposer_Compose_StripsHTML(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "<b>雷姆</b>是最佳選擇 & 無可取代", Done: true}, nil)

	composer := usecase.NewReportComposer(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	report, err := composer.Compose(context.Background(), "描述", []string{"溫柔"}, sampleMatches())
	require.NoError(t, err)
	assert.Equal(t, "雷姆是最佳選擇 & 無可取代", report)
}

func TestReportComposer_Compose_EmptyAfterSanitization(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "<script>alert(1)</script>", Done: true}, nil)

	composer := usecase.NewReportComposer(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	report, err := composer.Compose(context.Background(), "描述", []string{"溫柔"}, sampleMatches())
	assert.Empty(t, report)
	assert.ErrorIs(t, err, domain.ErrReportGeneration)
}

func TestReportComposer_Compose_RetriesThenSucceeds(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "   \n\t ", Done: true}, nil).Once()
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "最終報告", Done: true}, nil).Once()

	composer := usecase.NewReportComposer(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	report, err := composer.Compose(context.Background(), "描述", []string{"溫柔"}, sampleMatches())
	require.NoError(t, err)
	assert.Equal(t, "最終報告", report)
	mockLLM.AssertNumberOfCalls(t, "Generate", 3)
}

func TestReportComposer_Compose_FailsAfterExhaustingRetries(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "截斷的報告", Done: false}, nil)

	composer := usecase.NewReportComposer(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	report, err := composer.Compose(context.Background(), "描述", []string{"溫柔"}, sampleMatches())
	assert.Empty(t, report, "no partial report on failure")
	assert.ErrorIs(t, err, domain.ErrReportGeneration)
	mockLLM.AssertNumberOfCalls(t, "Generate", 3)
}
