package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"chara-match/internal/domain"
)

// Querier is the subset of pgxpool.Pool the source needs; tests
// substitute a pgxmock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const selectCharacters = `SELECT id, name, moe_traits, trait_count, embedding FROM characters ORDER BY id`

// PostgresSource loads the catalog from a pgvector-enabled characters
// table. Rows are ordered by id so repeated loads produce identical
// catalogs and tie-breaking stays stable.
type PostgresSource struct {
	db     Querier
	logger *slog.Logger
}

func NewPostgresSource(db Querier, logger *slog.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

// Load reads the whole characters table into memory. Like the file
// source, every failure wraps domain.ErrCatalogNotFound.
func (s *PostgresSource) Load(ctx context.Context) (*domain.Catalog, error) {
	start := time.Now()

	rows, err := s.db.Query(ctx, selectCharacters)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query characters: %v", domain.ErrCatalogNotFound, err)
	}
	defer rows.Close()

	var records []domain.CharacterRecord
	var embeddings [][]float32
	for rows.Next() {
		var (
			record    domain.CharacterRecord
			embedding pgvector.Vector
		)
		if err := rows.Scan(&record.ID, &record.Name, &record.MoeTraits, &record.TraitCount, &embedding); err != nil {
			return nil, fmt.Errorf("%w: failed to scan character row: %v", domain.ErrCatalogNotFound, err)
		}
		records = append(records, record)
		embeddings = append(embeddings, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate character rows: %v", domain.ErrCatalogNotFound, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: characters table is empty", domain.ErrCatalogNotFound)
	}

	dim := len(embeddings[0])
	for i, embedding := range embeddings {
		if len(embedding) != dim {
			return nil, fmt.Errorf("%w: embedding for id %d has dimension %d, want %d",
				domain.ErrCatalogNotFound, records[i].ID, len(embedding), dim)
		}
	}

	catalog := domain.NewCatalog(records, embeddings)

	s.logger.Info("catalog_postgres_loaded",
		slog.Int("record_count", catalog.Len()),
		slog.Int("dimension", catalog.Dimension()),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return catalog, nil
}

var _ domain.CatalogSource = (*PostgresSource)(nil)
