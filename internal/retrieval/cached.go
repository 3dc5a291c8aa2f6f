package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/cache"
)

// CachedStore memoises Query results in a cache.Provider. Count and
// Available always reach the underlying store.
type CachedStore struct {
	inner     DocumentStore
	cache     cache.Provider
	ttl       time.Duration
	namespace string
}

// NewCachedStore decorates inner. A nil provider disables caching.
func NewCachedStore(inner DocumentStore, provider cache.Provider, namespace string, ttl time.Duration) *CachedStore {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &CachedStore{inner: inner, cache: provider, ttl: ttl, namespace: namespace}
}

// Available implements DocumentStore.
func (c *CachedStore) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Query implements DocumentStore. Empty results are not cached so newly
// ingested documents surface without waiting for expiry.
func (c *CachedStore) Query(ctx context.Context, text string, limit int) ([]Passage, error) {
	key := c.key(text, limit)
	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached []Passage
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	passages, err := c.inner.Query(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	if len(passages) > 0 {
		if payload, err := json.Marshal(passages); err == nil {
			_ = c.cache.Set(ctx, key, payload, c.ttl)
		}
	}
	return passages, nil
}

// Count implements DocumentStore.
func (c *CachedStore) Count(ctx context.Context) (int, error) {
	return c.inner.Count(ctx)
}

func (c *CachedStore) key(text string, limit int) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("retrieval:%s:%d:%s", c.namespace, limit, hex.EncodeToString(sum[:]))
}
