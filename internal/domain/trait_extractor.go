package domain

import "context"

// TraitExtractor turns a free-text ideal-type description into a short
// ordered list of trait tokens (1-3 words each, roughly 8-12 for
// non-trivial input; the count is a prompt target, not an invariant).
// Implementations retry the underlying generation call and wrap
// terminal failures with ErrTraitExtraction.
type TraitExtractor interface {
	Extract(ctx context.Context, freeText string) ([]string, error)
}
