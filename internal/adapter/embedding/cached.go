package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// CachedEmbedder keeps embeddings in redis keyed by model and text hash.
// Redis failures are logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	inner   port.Embedder
	client  redis.UniversalClient
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewCachedEmbedder(inner port.Embedder, client redis.UniversalClient, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		log:     logger.OrNop(log),
		metrics: m,
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.inner.ModelName(), hex.EncodeToString(sum[:16]))
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("embedding cache read failed", zap.Error(err))
		vals = make([]interface{}, len(texts))
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missIdx = append(missIdx, i)
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = vec
		c.metrics.CacheHit("embedding")
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
		c.metrics.CacheMiss("embedding")
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("embedding cache write failed", zap.Error(err))
	}

	return out, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}
