// Package match_http exposes the matching pipeline over HTTP. It owns
// the request/response DTOs and the mapping from domain sentinels to
// status codes; everything behind it speaks domain types.
package match_http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"chara-match/internal/domain"
	"chara-match/internal/usecase"
)

// MatchRequest is the POST /v1/match body. TopK of zero means "use the
// server default".
type MatchRequest struct {
	Description string `json:"description" validate:"required"`
	TopK        int    `json:"top_k" validate:"omitempty,gte=1"`
}

// MatchEntry is one ranked character in a match response.
type MatchEntry struct {
	Rank          int      `json:"rank"`
	CharacterID   int      `json:"character_id"`
	Name          string   `json:"name"`
	MoeTraits     []string `json:"moe_traits"`
	RawSimilarity float64  `json:"raw_similarity"`
	ScaledScore   float64  `json:"scaled_score"`
}

// MatchResponse is the POST /v1/match reply.
type MatchResponse struct {
	MatchSetID string       `json:"match_set_id"`
	Traits     []string     `json:"traits"`
	Matches    []MatchEntry `json:"matches"`
	Report     string       `json:"report"`
}

// CharactersResponse is the GET /v1/characters reply.
type CharactersResponse struct {
	Characters []domain.CharacterRecord `json:"characters"`
	Count      int                      `json:"count"`
}

type Handler struct {
	matcher  usecase.MatchIdealTypeUsecase
	catalogs *usecase.CatalogProvider
	validate *validator.Validate
}

func NewHandler(matcher usecase.MatchIdealTypeUsecase, catalogs *usecase.CatalogProvider) *Handler {
	return &Handler{
		matcher:  matcher,
		catalogs: catalogs,
		validate: validator.New(),
	}
}

// RegisterRoutes attaches every endpoint to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/match", h.Match)
	e.GET("/v1/characters", h.Characters)
	e.GET("/v1/characters/:id", h.CharacterByID)
	e.GET("/v1/healthz", h.Healthz)
	e.GET("/v1/readyz", h.Readyz)
}

// Match runs the full pipeline for one description.
// (POST /v1/match)
func (h *Handler) Match(ctx echo.Context) error {
	var req MatchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Description = strings.TrimSpace(req.Description)
	if err := h.validate.Struct(req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	output, err := h.matcher.Execute(ctx.Request().Context(), usecase.MatchIdealTypeInput{
		Description: req.Description,
		TopK:        req.TopK,
	})
	if err != nil {
		return ctx.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	matches := make([]MatchEntry, 0, len(output.Matches))
	for _, m := range output.Matches {
		matches = append(matches, MatchEntry{
			Rank:          m.Rank,
			CharacterID:   m.Character.ID,
			Name:          m.Character.Name,
			MoeTraits:     m.Character.MoeTraits,
			RawSimilarity: m.Result.RawSimilarity,
			ScaledScore:   m.Result.ScaledScore,
		})
	}

	return ctx.JSON(http.StatusOK, MatchResponse{
		MatchSetID: output.MatchSetID,
		Traits:     output.Traits,
		Matches:    matches,
		Report:     output.Report,
	})
}

// Characters lists the loaded catalog.
// (GET /v1/characters)
func (h *Handler) Characters(ctx echo.Context) error {
	catalog, err := h.catalogs.Get(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, CharactersResponse{
		Characters: catalog.Records,
		Count:      catalog.Len(),
	})
}

// CharacterByID returns a single catalog record.
// (GET /v1/characters/:id)
func (h *Handler) CharacterByID(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "character id must be an integer"})
	}

	catalog, err := h.catalogs.Get(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	record, ok := catalog.RecordByID(id)
	if !ok {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "character not found"})
	}
	return ctx.JSON(http.StatusOK, record)
}

// Healthz reports process liveness.
// (GET /v1/healthz)
func (h *Handler) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the catalog has been loaded. It never forces
// a load; the warmup worker owns that.
// (GET /v1/readyz)
func (h *Handler) Readyz(ctx echo.Context) error {
	if !h.catalogs.Ready() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "catalog loading"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps domain sentinels onto status codes: an absent catalog
// is a readiness problem, upstream generation failures are a bad
// gateway, and a dimension mismatch is a deployment bug on our side.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCatalogNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTraitExtraction),
		errors.Is(err, domain.ErrEmbedding),
		errors.Is(err, domain.ErrReportGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
