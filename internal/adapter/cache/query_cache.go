package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"shoprag/internal/domain"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// QueryCache is an LRU of knowledge query results with a TTL. Entries
// remember the index generation they were computed under and are dropped
// once the generation moves on.
type QueryCache struct {
	lru      *expirable.LRU[string, cacheEntry]
	indexGen atomic.Uint64
}

type cacheEntry struct {
	results  []domain.ScoredDocument
	indexGen uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, cacheEntry](maxSize, nil, ttl),
	}
}

func cacheKey(query string, topK int) string {
	data := []byte(strings.TrimSpace(query))
	data = append(data, 0, byte(topK>>8), byte(topK))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a copy of the cached results, so callers may reorder or edit them.
func (c *QueryCache) Get(query string, topK int) ([]domain.ScoredDocument, bool) {
	key := cacheKey(query, topK)
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if entry.indexGen != c.indexGen.Load() {
		c.lru.Remove(key)
		return nil, false
	}
	return cloneResults(entry.results), true
}

// Put stores a copy of results; later edits by the caller do not reach the cache.
func (c *QueryCache) Put(query string, topK int, results []domain.ScoredDocument) {
	c.lru.Add(cacheKey(query, topK), cacheEntry{
		results:  cloneResults(results),
		indexGen: c.indexGen.Load(),
	})
}

// cloneResults copies the slice and each document's metadata map.
// Embeddings are never written after indexing and stay shared.
func cloneResults(results []domain.ScoredDocument) []domain.ScoredDocument {
	if results == nil {
		return nil
	}
	out := make([]domain.ScoredDocument, len(results))
	copy(out, results)
	for i := range out {
		out[i].Document.Metadata = maps.Clone(out[i].Document.Metadata)
	}
	return out
}

// Invalidate drops every entry and starts a new generation, so results
// computed concurrently against the old index are never served.
func (c *QueryCache) Invalidate() {
	c.indexGen.Add(1)
	c.lru.Purge()
}

// Generation returns the current index generation.
func (c *QueryCache) Generation() uint64 {
	return c.indexGen.Load()
}

func (c *QueryCache) Size() int {
	return c.lru.Len()
}

// CachedRetriever serves repeated knowledge queries from a QueryCache.
type CachedRetriever struct {
	retriever port.KnowledgeRetriever
	cache     *QueryCache
	metrics   *metrics.Metrics
}

func NewCachedRetriever(retriever port.KnowledgeRetriever, cache *QueryCache, m *metrics.Metrics) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		metrics:   m,
	}
}

func (r *CachedRetriever) Query(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error) {
	if results, hit := r.cache.Get(text, k); hit {
		r.metrics.CacheHit("query")
		return results, nil
	}
	r.metrics.CacheMiss("query")

	gen := r.cache.Generation()
	results, err := r.retriever.Query(ctx, text, k)
	if err != nil {
		return nil, err
	}

	// a rebuild finished while we were searching; the result may be stale
	if r.cache.Generation() == gen {
		r.cache.Put(text, k, results)
	}
	return results, nil
}

// Invalidate forwards to the underlying cache.
func (r *CachedRetriever) Invalidate() {
	r.cache.Invalidate()
}
