package embedding

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// New builds the configured embedder: the provider, wrapped in retries and
// a circuit breaker, then in the redis cache when rdb is set and a TTL is configured.
func New(cfg config.EmbeddingConfig, rdb redis.UniversalClient, log *zap.Logger, m *metrics.Metrics) (port.Embedder, error) {
	var base port.Embedder
	switch cfg.Provider {
	case "openai", "":
		e, err := NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Dimension > 0 {
			e.dimension = cfg.Dimension
		}
		base = e
	case "ollama":
		base = NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	opts := DefaultResilientOptions()
	opts.Timeout = cfg.Timeout
	if cfg.MaxRetries >= 0 {
		opts.MaxRetries = uint64(cfg.MaxRetries)
	}
	var emb port.Embedder = NewResilientEmbedder(base, opts, log, m)

	if rdb != nil && cfg.CacheTTL > 0 {
		emb = NewCachedEmbedder(emb, rdb, cfg.CacheTTL, log, m)
	}
	return emb, nil
}
