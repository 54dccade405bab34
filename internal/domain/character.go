package domain

// CharacterRecord is one entry of the character catalog.
// Records are immutable after load and owned by the catalog.
type CharacterRecord struct {
	// ID is unique within the catalog. Sources that carry no id assign
	// the zero-based load position, which keeps ranking deterministic.
	ID int `json:"id"`
	// Name as scraped, possibly with disambiguation suffixes like
	// "雷姆(Re:从零开始的异世界生活)" or a trailing "#".
	Name string `json:"name"`
	// MoeTraits is the ordered trait list for this character. May be
	// empty when the source page had no recognizable infobox entry.
	MoeTraits []string `json:"moe_traits"`
	// TraitCount mirrors len(MoeTraits) in well-formed catalogs.
	TraitCount int `json:"trait_count"`
}

// MatchResult is one scored catalog entry for a single query.
// Ephemeral: produced per request, never persisted.
type MatchResult struct {
	CharacterID   int
	RawSimilarity float64 // cosine similarity, [-1, 1]
	ScaledScore   float64 // min-max rescaled over the whole catalog, [0, 100]
}

// Match pairs a scored result with its catalog record for presentation.
type Match struct {
	Character CharacterRecord
	Result    MatchResult
}
