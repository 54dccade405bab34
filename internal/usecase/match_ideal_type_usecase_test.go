package usecase_test

import (
	"context"
	"fmt"
	"testing"

	"chara-match/internal/domain"
	"chara-match/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTraitExtractor struct {
	mock.Mock
}

func (m *mockTraitExtractor) Extract(ctx context.Context, freeText string) ([]string, error) {
	args := m.Called(ctx, freeText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string { return "bge-test" }

type mockReportComposer struct {
	mock.Mock
}

func (m *mockReportComposer) Compose(ctx context.Context, userText string, traits []string, matches []domain.Match) (string, error) {
	args := m.Called(ctx, userText, traits, matches)
	return args.String(0), args.Error(1)
}

func newMatchUsecase(
	extractor domain.TraitExtractor,
	encoder domain.VectorEncoder,
	composer domain.ReportComposer,
	source domain.CatalogSource,
	defaultK int,
) usecase.MatchIdealTypeUsecase {
	return usecase.NewMatchIdealTypeUsecase(
		extractor,
		encoder,
		domain.NewSimilarityRanker(),
		composer,
		usecase.NewCatalogProvider(source, testLogger()),
		defaultK,
		testLogger(),
	)
}

func TestMatchIdealTypeUsecase_Execute_Success(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	composer := new(mockReportComposer)
	source := &stubCatalogSource{catalog: smallCatalog()}

	extractor.On("Extract", mock.Anything, "喜歡溫柔的女僕").
		Return([]string{"溫柔", "女僕"}, nil)
	// Traits are joined into one query text with "; ".
	encoder.On("Encode", mock.Anything, []string{"溫柔; 女僕"}).
		Return([][]float32{{1, 0}}, nil)
	composer.On("Compose", mock.Anything, "喜歡溫柔的女僕", []string{"溫柔", "女僕"},
		mock.MatchedBy(func(matches []domain.Match) bool {
			return len(matches) == 2 && matches[0].Character.Name == "雷姆"
		})).
		Return("💖 雷姆是你的最佳匹配！", nil)

	uc := newMatchUsecase(extractor, encoder, composer, source, 5)

	out, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{
		Description: "喜歡溫柔的女僕",
		TopK:        2,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(out.MatchSetID)
	assert.NoError(t, err, "match set id should be a UUID")
	assert.Equal(t, []string{"溫柔", "女僕"}, out.Traits)
	assert.Equal(t, "💖 雷姆是你的最佳匹配！", out.Report)

	// Query [1,0] against rows [1,0], [0,1], [0.7,0.7]: the identical
	// row scores 100, the diagonal row lands in between, the
	// orthogonal row is cut by top-k 2.
	require.Len(t, out.Matches, 2)
	assert.Equal(t, 1, out.Matches[0].Rank)
	assert.Equal(t, 1, out.Matches[0].Character.ID)
	assert.Equal(t, 100.0, out.Matches[0].Result.ScaledScore)
	assert.Equal(t, 2, out.Matches[1].Rank)
	assert.Equal(t, 3, out.Matches[1].Character.ID)
	assert.Greater(t, out.Matches[1].Result.ScaledScore, 0.0)

	extractor.AssertExpectations(t)
	encoder.AssertExpectations(t)
	composer.AssertExpectations(t)
}

func TestMatchIdealTypeUsecase_Execute_ZeroTopKUsesDefault(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	composer := new(mockReportComposer)
	source := &stubCatalogSource{catalog: smallCatalog()}

	extractor.On("Extract", mock.Anything, mock.Anything).Return([]string{"傲嬌"}, nil)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0, 1}}, nil)
	composer.On("Compose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("報告", nil)

	uc := newMatchUsecase(extractor, encoder, composer, source, 2)

	out, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	require.NoError(t, err)
	assert.Len(t, out.Matches, 2, "zero top_k falls back to the configured default")
}

func TestMatchIdealTypeUsecase_Execute_RejectsNegativeTopK(t *testing.T) {
	uc := newMatchUsecase(
		new(mockTraitExtractor),
		new(mockVectorEncoder),
		new(mockReportComposer),
		&stubCatalogSource{catalog: smallCatalog()},
		5,
	)

	_, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{
		Description: "描述",
		TopK:        -1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
}

func TestMatchIdealTypeUsecase_Execute_CatalogUnavailable(t *testing.T) {
	extractor := new(mockTraitExtractor)
	source := &stubCatalogSource{err: fmt.Errorf("%w: no file", domain.ErrCatalogNotFound)}

	uc := newMatchUsecase(extractor, new(mockVectorEncoder), new(mockReportComposer), source, 5)

	_, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	assert.ErrorIs(t, err, domain.ErrCatalogNotFound)
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestMatchIdealTypeUsecase_Execute_ExtractionFailure(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: exhausted retries", domain.ErrTraitExtraction))

	uc := newMatchUsecase(extractor, encoder, new(mockReportComposer),
		&stubCatalogSource{catalog: smallCatalog()}, 5)

	_, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	assert.ErrorIs(t, err, domain.ErrTraitExtraction)
	encoder.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything)
}

func TestMatchIdealTypeUsecase_Execute_EmbeddingFailure(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]string{"傲嬌"}, nil)
	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: ollama unreachable", domain.ErrEmbedding))

	uc := newMatchUsecase(extractor, encoder, new(mockReportComposer),
		&stubCatalogSource{catalog: smallCatalog()}, 5)

	_, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestMatchIdealTypeUsecase_Execute_DimensionMismatch(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]string{"傲嬌"}, nil)
	// Catalog vectors are 2-dimensional; return a 3-dimensional query.
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{1, 0, 0}}, nil)

	uc := newMatchUsecase(extractor, encoder, new(mockReportComposer),
		&stubCatalogSource{catalog: smallCatalog()}, 5)

	_, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMatchIdealTypeUsecase_Execute_ReportFailure(t *testing.T) {
	extractor := new(mockTraitExtractor)
	encoder := new(mockVectorEncoder)
	composer := new(mockReportComposer)
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]string{"傲嬌"}, nil)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0, 1}}, nil)
	composer.On("Compose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: exhausted retries", domain.ErrReportGeneration))

	uc := newMatchUsecase(extractor, encoder, composer,
		&stubCatalogSource{catalog: smallCatalog()}, 5)

	out, err := uc.Execute(context.Background(), usecase.MatchIdealTypeInput{Description: "描述"})
	assert.Nil(t, out, "no partial output when the report fails")
	assert.ErrorIs(t, err, domain.ErrReportGeneration)
}
