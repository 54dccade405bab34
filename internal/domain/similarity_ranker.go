package domain

import (
	"fmt"
	"sort"
)

// SimilarityRanker scores a query vector against every catalog row and
// returns the top-k entries by min-max rescaled score.
type SimilarityRanker interface {
	Rank(query []float32, catalog *Catalog, k int) ([]MatchResult, error)
}

type cosineRanker struct{}

// NewSimilarityRanker creates the brute-force cosine ranker. The
// catalog is small and fully resident, so exhaustive scoring beats any
// index structure here.
func NewSimilarityRanker() SimilarityRanker {
	return &cosineRanker{}
}

// Rank computes raw cosine similarity for every catalog row, rescales
// the whole population with MinMaxScale, and returns min(k, rows)
// results ordered by scaled score descending. Ties are broken by
// ascending character id to keep output deterministic. Rescaling runs
// over the entire catalog before truncation, so scores are relative to
// this catalog per query, not comparable across queries.
func (r *cosineRanker) Rank(query []float32, catalog *Catalog, k int) ([]MatchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("top k must be >= 1, got %d", k)
	}
	if catalog.Len() == 0 {
		return []MatchResult{}, nil
	}
	if dim := catalog.Dimension(); len(query) != dim {
		return nil, fmt.Errorf("query has %d dimensions, catalog has %d: %w", len(query), dim, ErrDimensionMismatch)
	}

	raw := make([]float64, catalog.Len())
	for i, row := range catalog.Embeddings {
		raw[i] = CosineSimilarity(query, row)
	}
	scaled := MinMaxScale(raw)

	results := make([]MatchResult, catalog.Len())
	for i := range raw {
		results[i] = MatchResult{
			CharacterID:   catalog.Records[i].ID,
			RawSimilarity: raw[i],
			ScaledScore:   scaled[i],
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].ScaledScore != results[j].ScaledScore {
			return results[i].ScaledScore > results[j].ScaledScore
		}
		return results[i].CharacterID < results[j].CharacterID
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
