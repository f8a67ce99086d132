package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/adapter/cache"
	"shoprag/internal/adapter/catalog"
	"shoprag/internal/adapter/embedding"
	"shoprag/internal/adapter/matcher"
	"shoprag/internal/adapter/memstore"
	"shoprag/internal/adapter/store"
	"shoprag/internal/port"
	"shoprag/internal/usecase"
)

// app holds the components a command works with.
type app struct {
	embedder  port.Embedder
	store     port.VectorStore
	queries   *cache.QueryCache
	index     *usecase.KnowledgeIndex
	knowledge port.KnowledgeRetriever
	matcher   *matcher.Matcher
	catalog   *catalog.SQLiteStore
	tracker   *usecase.OrderTracker

	closers []func() error
}

// openApp wires the configured stores and providers for the current root directory.
func openApp() (*app, error) {
	cfg := GetConfig()
	a := &app{}

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		rdb = client
	}

	emb, err := embedding.New(cfg.Embedding, rdb, log, appMetrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.embedder = emb

	st, err := openVectorStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	if cfg.Cache.Enabled {
		a.queries = cache.NewQueryCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}
	a.index = usecase.NewKnowledgeIndex(st, emb, a.queries, cfg.Index, log, appMetrics)
	a.knowledge = a.index
	if a.queries != nil {
		a.knowledge = cache.NewCachedRetriever(a.index, a.queries, appMetrics)
	}

	cat, err := catalog.Open(resolvePath(cfg.Catalog.Path))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	a.catalog = cat
	a.closers = append(a.closers, cat.Close)

	a.matcher = matcher.New(emb, cfg.Match, log, appMetrics)
	a.tracker = usecase.NewOrderTracker(cat, cfg.Order, log, appMetrics)
	return a, nil
}

func openVectorStore() (port.VectorStore, error) {
	cfg := GetConfig()
	rootDir := GetRootDir()

	switch cfg.Index.Store {
	case "memory":
		return memstore.NewVectorCollection(), nil
	case "bolt", "":
		if err := config.EnsureDataDir(rootDir); err != nil {
			return nil, fmt.Errorf("failed to create .shoprag directory: %w", err)
		}
		dbPath := config.IndexDBPath(rootDir)
		st, err := store.OpenBoltVectorStore(dbPath, store.Options{
			BatchSize:  cfg.Index.BatchSize,
			ConfigHash: store.ComputeConfigHash(cfg.Embedding),
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		log.Debug("opened index", zap.String("path", dbPath), zap.Int("documents", st.Count()))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown index store: %s", cfg.Index.Store)
	}
}

// assistant builds the context assembly facade over the app's components.
func (a *app) assistant() *usecase.Assistant {
	packer := usecase.NewSnippetPacker(nil)
	return usecase.NewAssistant(a.knowledge, a.matcher, a.catalog, a.tracker, packer, GetConfig(), log)
}

// Close releases everything openApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// resolvePath makes a configured relative path relative to the root directory.
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetRootDir(), path)
}
