// Package catalog provides the loaders for the character catalog: a
// file pair (JSON records + npy embedding matrix) for the bundled
// dataset, and a pgvector-backed Postgres table for deployments that
// keep the catalog in a database.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chara-match/internal/domain"
	"chara-match/internal/npy"
)

// fileRecord is the JSON shape of one catalog entry. ID is a pointer
// because older exports carry no ids; those records get their load
// position as id, which keeps ranking deterministic.
type fileRecord struct {
	ID         *int     `json:"id"`
	Name       string   `json:"name"`
	MoeTraits  []string `json:"moe_traits"`
	TraitCount int      `json:"trait_count"`
}

// FileSource loads the catalog from a JSON record file and a parallel
// npy embedding matrix.
type FileSource struct {
	DataPath       string
	EmbeddingsPath string
	logger         *slog.Logger
}

func NewFileSource(dataPath, embeddingsPath string, logger *slog.Logger) *FileSource {
	return &FileSource{
		DataPath:       dataPath,
		EmbeddingsPath: embeddingsPath,
		logger:         logger,
	}
}

// Load reads both files and validates that they describe the same
// catalog. Every failure wraps domain.ErrCatalogNotFound: a catalog
// that is missing, empty, or inconsistent is equally unusable.
func (s *FileSource) Load(_ context.Context) (*domain.Catalog, error) {
	start := time.Now()

	raw, err := os.ReadFile(s.DataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrCatalogNotFound, s.DataPath, err)
	}

	var fileRecords []fileRecord
	if err := json.Unmarshal(raw, &fileRecords); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", domain.ErrCatalogNotFound, s.DataPath, err)
	}
	if len(fileRecords) == 0 {
		return nil, fmt.Errorf("%w: %s has no records", domain.ErrCatalogNotFound, s.DataPath)
	}

	records := make([]domain.CharacterRecord, len(fileRecords))
	for i, r := range fileRecords {
		id := i
		if r.ID != nil {
			id = *r.ID
		}
		traitCount := r.TraitCount
		if traitCount == 0 {
			traitCount = len(r.MoeTraits)
		}
		records[i] = domain.CharacterRecord{
			ID:         id,
			Name:       r.Name,
			MoeTraits:  r.MoeTraits,
			TraitCount: traitCount,
		}
	}

	embeddings, err := npy.ReadFile(s.EmbeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read embeddings %s: %v", domain.ErrCatalogNotFound, s.EmbeddingsPath, err)
	}
	if len(embeddings) != len(records) {
		return nil, fmt.Errorf("%w: %d records but %d embedding rows",
			domain.ErrCatalogNotFound, len(records), len(embeddings))
	}

	catalog := domain.NewCatalog(records, embeddings)

	s.logger.Info("catalog_file_loaded",
		slog.Int("record_count", catalog.Len()),
		slog.Int("dimension", catalog.Dimension()),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return catalog, nil
}

var _ domain.CatalogSource = (*FileSource)(nil)
