package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shoprag/config"
	"shoprag/internal/adapter/cache"
	"shoprag/internal/adapter/source"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// KnowledgeIndex renders knowledge sources into embedded documents and
// serves nearest-neighbour queries over them.
type KnowledgeIndex struct {
	store    port.VectorStore
	embedder port.Embedder
	cache    *cache.QueryCache
	cfg      config.IndexConfig
	log      *zap.Logger
	metrics  *metrics.Metrics

	// held for the whole of a rebuild or upsert; never waited on
	writeMu sync.Mutex
}

// NewKnowledgeIndex creates a knowledge index. qc may be nil.
func NewKnowledgeIndex(
	store port.VectorStore,
	embedder port.Embedder,
	qc *cache.QueryCache,
	cfg config.IndexConfig,
	log *zap.Logger,
	m *metrics.Metrics,
) *KnowledgeIndex {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	return &KnowledgeIndex{
		store:    store,
		embedder: embedder,
		cache:    qc,
		cfg:      cfg,
		log:      logger.OrNop(log),
		metrics:  m,
	}
}

// RebuildResult contains the results of a rebuild or upsert.
type RebuildResult struct {
	Documents  int
	Skipped    int
	Duplicates int
	Duration   time.Duration
	Errors     []string
}

// ProgressFunc receives the number of embedded documents so far and the total.
type ProgressFunc func(done, total int)

// RebuildOption configures a single rebuild.
type RebuildOption func(*rebuildOptions)

type rebuildOptions struct {
	progress ProgressFunc
}

// WithProgress reports embedding progress to fn. Calls are serialized.
func WithProgress(fn ProgressFunc) RebuildOption {
	return func(o *rebuildOptions) { o.progress = fn }
}

// Rebuild replaces the whole index with the documents rendered from
// sources. A second rebuild while one is running fails with
// domain.ErrRebuildInProgress. When embedding fails the live index is
// left untouched.
func (ix *KnowledgeIndex) Rebuild(ctx context.Context, sources []domain.SourceRecord, opts ...RebuildOption) (*RebuildResult, error) {
	return ix.write(ctx, sources, "rebuild", ix.store.Replace, opts)
}

// Upsert embeds the documents rendered from sources and adds or
// overwrites them by ID, leaving all other documents in place.
func (ix *KnowledgeIndex) Upsert(ctx context.Context, sources []domain.SourceRecord, opts ...RebuildOption) (*RebuildResult, error) {
	return ix.write(ctx, sources, "upsert", ix.store.Upsert, opts)
}

func (ix *KnowledgeIndex) write(
	ctx context.Context,
	sources []domain.SourceRecord,
	op string,
	commit func(context.Context, []domain.KnowledgeDocument) error,
	opts []RebuildOption,
) (*RebuildResult, error) {
	if !ix.writeMu.TryLock() {
		return nil, domain.ErrRebuildInProgress
	}
	defer ix.writeMu.Unlock()

	var o rebuildOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	result := &RebuildResult{}

	docs := ix.render(sources, result)

	if err := ix.embed(ctx, docs, o.progress); err != nil {
		ix.metrics.ObserveRebuild(time.Since(start).Seconds(), 0, "error")
		return nil, err
	}

	if err := commit(ctx, docs); err != nil {
		ix.metrics.ObserveRebuild(time.Since(start).Seconds(), 0, "error")
		return nil, fmt.Errorf("failed to %s index: %w", op, err)
	}

	if ix.cache != nil {
		ix.cache.Invalidate()
	}

	result.Documents = len(docs)
	result.Duration = time.Since(start)
	ix.metrics.ObserveRebuild(result.Duration.Seconds(), len(docs), "ok")
	ix.metrics.SetDocuments(ix.store.Count())

	ix.log.Info("knowledge index written",
		zap.String("op", op),
		zap.Int("documents", result.Documents),
		zap.Int("skipped", result.Skipped),
		zap.Int("duplicates", result.Duplicates),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// render turns records into documents, skipping malformed ones. Later
// records win over earlier ones with the same ID; the first position is kept.
func (ix *KnowledgeIndex) render(sources []domain.SourceRecord, result *RebuildResult) []domain.KnowledgeDocument {
	docs := make([]domain.KnowledgeDocument, 0, len(sources))
	pos := make(map[string]int, len(sources))

	for _, rec := range sources {
		doc, err := source.Render(rec)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err.Error())
			ix.metrics.SkipSource()
			ix.log.Warn("skipping knowledge source",
				zap.String("kind", string(rec.Kind)),
				zap.String("key", rec.Key),
				zap.Error(err),
			)
			continue
		}
		if i, ok := pos[doc.ID]; ok {
			result.Duplicates++
			docs[i] = doc
			continue
		}
		pos[doc.ID] = len(docs)
		docs = append(docs, doc)
	}
	return docs
}

// embed fills in document embeddings batch by batch, with at most
// EmbedConcurrency batches in flight.
func (ix *KnowledgeIndex) embed(ctx context.Context, docs []domain.KnowledgeDocument, progress ProgressFunc) error {
	if len(docs) == 0 {
		return nil
	}

	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.EmbedConcurrency)

	for start := 0; start < len(docs); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(docs))
		batch := docs[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.Text
			}

			vecs, err := ix.embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}

			if progress != nil {
				progressMu.Lock()
				done += len(batch)
				progress(done, len(docs))
				progressMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		ix.metrics.ProviderFailure("embedding")
		return providerError(err)
	}
	return nil
}

// Query returns the k documents nearest to text. k <= 0 uses the
// configured default. Blank text and an empty index yield no results.
func (ix *KnowledgeIndex) Query(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		k = ix.cfg.DefaultK
	}
	if strings.TrimSpace(text) == "" || ix.store.Count() == 0 {
		ix.metrics.ObserveQuery(0)
		return []domain.ScoredDocument{}, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		ix.metrics.ProviderFailure("embedding")
		return nil, providerError(err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors", domain.ErrProviderUnavailable, len(vecs))
	}

	results, err := ix.store.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	ix.metrics.ObserveQuery(len(results))
	return results, nil
}

// Count returns the number of indexed documents.
func (ix *KnowledgeIndex) Count() int {
	return ix.store.Count()
}

// providerError tags err as a provider failure unless it already is one.
func providerError(err error) error {
	if errors.Is(err, domain.ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}
