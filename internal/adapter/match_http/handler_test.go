package match_http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"chara-match/internal/adapter/match_http"
	"chara-match/internal/domain"
	"chara-match/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMatchUsecase struct {
	output   *usecase.MatchIdealTypeOutput
	err      error
	gotInput usecase.MatchIdealTypeInput
}

func (s *stubMatchUsecase) Execute(ctx context.Context, input usecase.MatchIdealTypeInput) (*usecase.MatchIdealTypeOutput, error) {
	s.gotInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

type stubSource struct {
	catalog *domain.Catalog
	err     error
}

func (s *stubSource) Load(ctx context.Context) (*domain.Catalog, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.catalog, nil
}

func testCatalog() *domain.Catalog {
	return domain.NewCatalog(
		[]domain.CharacterRecord{
			{ID: 1, Name: "雷姆", MoeTraits: []string{"女僕", "獻身"}, TraitCount: 2},
			{ID: 2, Name: "明日香", MoeTraits: []string{"傲嬌"}, TraitCount: 1},
		},
		[][]float32{{1, 0}, {0, 1}},
	)
}

func newProvider(source domain.CatalogSource) *usecase.CatalogProvider {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return usecase.NewCatalogProvider(source, logger)
}

func postMatch(t *testing.T, handler *match_http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/match", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, handler.Match(c))
	return rec
}

func TestHandler_Match_Success(t *testing.T) {
	stub := &stubMatchUsecase{
		output: &usecase.MatchIdealTypeOutput{
			MatchSetID: "11111111-2222-3333-4444-555555555555",
			Traits:     []string{"溫柔", "女僕"},
			Matches: []usecase.RankedMatch{
				{
					Rank:      1,
					Character: domain.CharacterRecord{ID: 1, Name: "雷姆", MoeTraits: []string{"女僕", "獻身"}, TraitCount: 2},
					Result:    domain.MatchResult{CharacterID: 1, RawSimilarity: 0.91, ScaledScore: 100},
				},
				{
					Rank:      2,
					Character: domain.CharacterRecord{ID: 2, Name: "明日香", MoeTraits: []string{"傲嬌"}, TraitCount: 1},
					Result:    domain.MatchResult{CharacterID: 2, RawSimilarity: 0.62, ScaledScore: 41.5},
				},
			},
			Report: "💖 雷姆是你的命定之人！",
		},
	}
	handler := match_http.NewHandler(stub, newProvider(&stubSource{catalog: testCatalog()}))

	rec := postMatch(t, handler, `{"description":"  喜歡溫柔的女僕  ","top_k":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "喜歡溫柔的女僕", stub.gotInput.Description, "description should be trimmed before the pipeline")
	assert.Equal(t, 2, stub.gotInput.TopK)

	var resp match_http.MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", resp.MatchSetID)
	assert.Equal(t, []string{"溫柔", "女僕"}, resp.Traits)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, 1, resp.Matches[0].Rank)
	assert.Equal(t, 1, resp.Matches[0].CharacterID)
	assert.Equal(t, "雷姆", resp.Matches[0].Name)
	assert.Equal(t, []string{"女僕", "獻身"}, resp.Matches[0].MoeTraits)
	assert.Equal(t, 100.0, resp.Matches[0].ScaledScore)
	assert.Equal(t, "💖 雷姆是你的命定之人！", resp.Report)
}

func TestHandler_Match_RejectsMissingDescription(t *testing.T) {
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

	rec := postMatch(t, handler, `{"top_k":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestHandler_Match_RejectsBlankDescription(t *testing.T) {
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

	rec := postMatch(t, handler, `{"description":"   \t  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Match_RejectsNegativeTopK(t *testing.T) {
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

	rec := postMatch(t, handler, `{"description":"傲嬌","top_k":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Match_RejectsMalformedJSON(t *testing.T) {
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

	rec := postMatch(t, handler, `{"description":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestHandler_Match_StatusCodeByFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"catalog unavailable", fmt.Errorf("failed to load catalog: %w", domain.ErrCatalogNotFound), http.StatusServiceUnavailable},
		{"trait extraction failed", fmt.Errorf("failed to extract traits: %w", domain.ErrTraitExtraction), http.StatusBadGateway},
		{"embedding failed", fmt.Errorf("failed to embed query: %w", domain.ErrEmbedding), http.StatusBadGateway},
		{"report failed", fmt.Errorf("failed to compose report: %w", domain.ErrReportGeneration), http.StatusBadGateway},
		{"dimension mismatch", fmt.Errorf("failed to rank matches: %w", domain.ErrDimensionMismatch), http.StatusInternalServerError},
		{"unclassified", fmt.Errorf("something else broke"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := match_http.NewHandler(
				&stubMatchUsecase{err: tc.err},
				newProvider(&stubSource{catalog: testCatalog()}),
			)

			rec := postMatch(t, handler, `{"description":"傲嬌"}`)
			assert.Equal(t, tc.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandler_Characters_ReturnsLoadedCatalog(t *testing.T) {
	e := echo.New()
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

	req := httptest.NewRequest(http.MethodGet, "/v1/characters", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Characters(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp match_http.CharactersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Characters, 2)
	assert.Equal(t, "雷姆", resp.Characters[0].Name)
	assert.Equal(t, []string{"女僕", "獻身"}, resp.Characters[0].MoeTraits)
}

func TestHandler_Characters_UnavailableUntilCatalogLoads(t *testing.T) {
	e := echo.New()
	source := &stubSource{err: fmt.Errorf("%w: data file missing", domain.ErrCatalogNotFound)}
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(source))

	req := httptest.NewRequest(http.MethodGet, "/v1/characters", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Characters(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_CharacterByID(t *testing.T) {
	getCharacter := func(t *testing.T, id string) *httptest.ResponseRecorder {
		t.Helper()
		e := echo.New()
		handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(&stubSource{catalog: testCatalog()}))

		req := httptest.NewRequest(http.MethodGet, "/v1/characters/"+id, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/characters/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)

		require.NoError(t, handler.CharacterByID(c))
		return rec
	}

	t.Run("Known id returns the record", func(t *testing.T) {
		rec := getCharacter(t, "2")
		require.Equal(t, http.StatusOK, rec.Code)

		var record domain.CharacterRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
		assert.Equal(t, "明日香", record.Name)
	})

	t.Run("Unknown id returns 404", func(t *testing.T) {
		rec := getCharacter(t, "999")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "character not found")
	})

	t.Run("Non-numeric id returns 400", func(t *testing.T) {
		rec := getCharacter(t, "rem")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Healthz_AlwaysOK(t *testing.T) {
	e := echo.New()
	source := &stubSource{err: fmt.Errorf("%w: nothing to load", domain.ErrCatalogNotFound)}
	handler := match_http.NewHandler(&stubMatchUsecase{}, newProvider(source))

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Healthz(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Readyz_TracksCatalogState(t *testing.T) {
	e := echo.New()
	provider := newProvider(&stubSource{catalog: testCatalog()})
	handler := match_http.NewHandler(&stubMatchUsecase{}, provider)

	readyz := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, handler.Readyz(c))
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, readyz().Code, "not ready before the first load")

	_, err := provider.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, readyz().Code)
}
