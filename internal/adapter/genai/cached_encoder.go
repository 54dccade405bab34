package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"chara-match/internal/domain"
)

// CachedEncoder memoizes successful encodings in a TTL-bounded LRU.
// Identical match queries are common (users resubmit the same
// description), and an embedding is immutable for a given model, so a
// cache hit saves a full round trip to Ollama.
type CachedEncoder struct {
	inner  domain.VectorEncoder
	cache  *expirable.LRU[string, []float32]
	logger *slog.Logger
}

// NewCachedEncoder wraps inner with an LRU of the given size and TTL.
// A non-positive size disables caching and returns inner unchanged.
func NewCachedEncoder(inner domain.VectorEncoder, size int, ttl time.Duration, logger *slog.Logger) domain.VectorEncoder {
	if size <= 0 {
		return inner
	}
	return &CachedEncoder{
		inner:  inner,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: logger,
	}
}

// Encode serves each text from the cache when possible and batches the
// misses into a single inner call. Results keep input order. Returned
// and stored vectors are copies so callers cannot mutate cache entries.
func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			results[i] = append([]float32(nil), vec...)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		c.logger.Debug("embed_cache_hit", slog.Int("text_count", len(texts)))
		return results, nil
	}

	encoded, err := c.inner.Encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(encoded) != len(missTexts) {
		return nil, fmt.Errorf("%w: encoder returned %d vectors for %d inputs",
			domain.ErrEmbedding, len(encoded), len(missTexts))
	}

	for j, idx := range missIdx {
		c.cache.Add(c.key(texts[idx]), append([]float32(nil), encoded[j]...))
		results[idx] = encoded[j]
	}

	c.logger.Debug("embed_cache_filled",
		slog.Int("text_count", len(texts)),
		slog.Int("miss_count", len(missTexts)))

	return results, nil
}

// key hashes the text together with the model version so a model swap
// never serves vectors computed by the previous model.
func (c *CachedEncoder) key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Version() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Version reports the inner encoder's model identifier.
func (c *CachedEncoder) Version() string {
	return c.inner.Version()
}

var _ domain.VectorEncoder = (*CachedEncoder)(nil)
