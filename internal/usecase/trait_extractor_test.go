package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"chara-match/internal/domain"
	"chara-match/internal/retry"
	"chara-match/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockLLMClient mocks domain.LLMClient. Shared with the report
// composer tests below.
type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string { return "gemini-test" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testRetrier() *retry.Retrier {
	return retry.New(retry.Policy{MaxAttempts: 3, Delay: 0}, testLogger())
}

func TestTraitExtractor_Extract_Success(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "喜歡溫柔的人")
	})).Return(&domain.LLMResponse{Text: `["溫柔", "體貼", "治癒"]`, Done: true}, nil).Once()

	extractor := usecase.NewTraitExtractor(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	traits, err := extractor.Extract(context.Background(), "喜歡溫柔的人")
	require.NoError(t, err)
	assert.Equal(t, []string{"溫柔", "體貼", "治癒"}, traits)
	mockLLM.AssertExpectations(t)
}

func TestTraitExtractor_Extract_RetriesOnGenerationError(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errors.New("quota exceeded")).Once()
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: `["傲嬌"]`, Done: true}, nil).Once()

	extractor := usecase.NewTraitExtractor(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	traits, err := extractor.Extract(context.Background(), "描述")
	require.NoError(t, err)
	assert.Equal(t, []string{"傲嬌"}, traits)
	mockLLM.AssertNumberOfCalls(t, "Generate", 2)
}

func TestTraitExtractor_Extract_RetriesOnEmptyAndUnfinishedReplies(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "", Done: true}, nil).Once()
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: `["傲嬌`, Done: false}, nil).Once()
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: `["傲嬌", "冷靜"]`, Done: true}, nil).Once()

	extractor := usecase.NewTraitExtractor(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	traits, err := extractor.Extract(context.Background(), "描述")
	require.NoError(t, err)
	assert.Equal(t, []string{"傲嬌", "冷靜"}, traits)
	mockLLM.AssertNumberOfCalls(t, "Generate", 3)
}

func TestTraitExtractor_Extract_FailsAfterExhaustingRetries(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errors.New("unreachable"))

	extractor := usecase.NewTraitExtractor(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	traits, err := extractor.Extract(context.Background(), "描述")
	assert.Nil(t, traits)
	assert.ErrorIs(t, err, domain.ErrTraitExtraction)
	mockLLM.AssertNumberOfCalls(t, "Generate", 3)
}

func TestTraitExtractor_Extract_ParseFailureIsTerminal(t *testing.T) {
	mockLLM := new(mockLLMClient)
	mockLLM.On("Generate", mock.Anything, mock.Anything).
		Return(&domain.LLMResponse{Text: "我覺得這個人很溫柔。", Done: true}, nil)

	extractor := usecase.NewTraitExtractor(mockLLM, usecase.NewPromptBuilder(), testRetrier(), testLogger())

	_, err := extractor.Extract(context.Background(), "描述")
	assert.ErrorIs(t, err, domain.ErrTraitExtraction)
	// A completed generation with an unparseable reply is not retried.
	mockLLM.AssertNumberOfCalls(t, "Generate", 1)
}
