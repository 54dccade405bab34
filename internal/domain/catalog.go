package domain

import "context"

// Catalog holds the character records and their parallel embedding
// matrix. Embeddings[i] is the vector for Records[i]; all rows share
// the same dimensionality. Loaded once, read-only afterwards, so it is
// safe to share across requests without locking.
type Catalog struct {
	Records    []CharacterRecord
	Embeddings [][]float32

	byID map[int]int // character id -> row index
}

// NewCatalog builds a catalog and its id lookup. Callers guarantee
// records and embeddings are parallel; sources validate that at load.
func NewCatalog(records []CharacterRecord, embeddings [][]float32) *Catalog {
	byID := make(map[int]int, len(records))
	for i, r := range records {
		byID[r.ID] = i
	}
	return &Catalog{Records: records, Embeddings: embeddings, byID: byID}
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.Records)
}

// Dimension returns the embedding dimensionality, 0 for an empty catalog.
func (c *Catalog) Dimension() int {
	if len(c.Embeddings) == 0 {
		return 0
	}
	return len(c.Embeddings[0])
}

// RecordByID looks up a record by its character id.
func (c *Catalog) RecordByID(id int) (CharacterRecord, bool) {
	i, ok := c.byID[id]
	if !ok {
		return CharacterRecord{}, false
	}
	return c.Records[i], true
}

// CatalogSource loads the catalog from its backing store.
// Load is idempotent and side-effect free; it is expensive, so callers
// memoize the result for the process lifetime.
type CatalogSource interface {
	Load(ctx context.Context) (*Catalog, error)
}
