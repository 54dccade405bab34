package domain

import "errors"

// Pipeline error taxonomy. Adapters and usecases wrap these with
// fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is while keeping the human-readable chain.
var (
	// ErrCatalogNotFound marks a missing or unusable catalog source
	// (absent file, empty record set, row/record mismatch). The process
	// is not usable for matching until the catalog loads.
	ErrCatalogNotFound = errors.New("character catalog not found")

	// ErrTraitExtraction marks a generation reply that could not be
	// turned into a non-empty trait list after exhausting retries.
	ErrTraitExtraction = errors.New("trait extraction failed")

	// ErrEmbedding marks an unreachable embedding service or a reply
	// with no usable vector.
	ErrEmbedding = errors.New("embedding failed")

	// ErrReportGeneration marks a report composition failure after
	// exhausting retries.
	ErrReportGeneration = errors.New("report generation failed")

	// ErrDimensionMismatch marks a query vector whose dimensionality
	// differs from the catalog's. This means the live embedding model
	// does not match the model the catalog was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
