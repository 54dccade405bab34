package domain

import (
	"context"
)

// VectorEncoder defines the interface for generating embeddings.
// Implementations do not retry: retry policy belongs to the generation
// callers, and a failed embedding surfaces immediately as ErrEmbedding.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
