package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoprag/config"
	"shoprag/internal/adapter/cache"
	"shoprag/internal/adapter/embedding"
	"shoprag/internal/adapter/memstore"
	"shoprag/internal/adapter/source"
	"shoprag/internal/domain"
	"shoprag/internal/port"
)

func newTestIndex(store port.VectorStore, emb port.Embedder, qc *cache.QueryCache, batch int) *KnowledgeIndex {
	cfg := config.DefaultConfig().Index
	cfg.BatchSize = batch
	return NewKnowledgeIndex(store, emb, qc, cfg, nil, nil)
}

func ids(docs []domain.ScoredDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Document.ID
	}
	return out
}

func TestKnowledgeIndex_SelfRetrievalSingleDocument(t *testing.T) {
	ctx := context.Background()
	for _, src := range testSources() {
		doc, err := source.Render(src)
		require.NoError(t, err)

		ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 100)
		_, err = ix.Rebuild(ctx, []domain.SourceRecord{src})
		require.NoError(t, err)

		res, err := ix.Query(ctx, doc.Text, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, doc.ID, res[0].Document.ID)
		assert.InDelta(t, 1.0, res[0].Similarity, 1e-6)
	}
}

func TestKnowledgeIndex_SelfRetrievalFullIndex(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 2)
	_, err := ix.Rebuild(ctx, testSources())
	require.NoError(t, err)

	for _, src := range testSources() {
		doc, err := source.Render(src)
		require.NoError(t, err)
		res, err := ix.Query(ctx, doc.Text, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, doc.ID, res[0].Document.ID)
	}
}

func TestKnowledgeIndex_RebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 100)

	queries := []string{"how do returns and refunds work", "shipping delivery time", "red shirt"}

	_, err := ix.Rebuild(ctx, testSources())
	require.NoError(t, err)
	var first [][]string
	for _, q := range queries {
		res, err := ix.Query(ctx, q, 5)
		require.NoError(t, err)
		first = append(first, ids(res))
	}

	_, err = ix.Rebuild(ctx, testSources())
	require.NoError(t, err)
	for i, q := range queries {
		res, err := ix.Query(ctx, q, 5)
		require.NoError(t, err)
		assert.Equal(t, first[i], ids(res), q)
	}
}

func TestKnowledgeIndex_RejectsConcurrentRebuild(t *testing.T) {
	ctx := context.Background()
	emb := newBlockingEmbedder()
	ix := newTestIndex(memstore.NewVectorCollection(), emb, nil, 100)

	done := make(chan error, 1)
	go func() {
		_, err := ix.Rebuild(ctx, testSources())
		done <- err
	}()

	<-emb.started
	_, err := ix.Rebuild(ctx, testSources())
	assert.ErrorIs(t, err, domain.ErrRebuildInProgress)
	_, err = ix.Upsert(ctx, testSources())
	assert.ErrorIs(t, err, domain.ErrRebuildInProgress)

	close(emb.release)
	require.NoError(t, <-done)
	assert.Equal(t, len(testSources()), ix.Count())
}

func TestKnowledgeIndex_ProviderFailureKeepsLiveIndex(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewVectorCollection()

	good := newTestIndex(store, embedding.NewHashEmbedder(256), nil, 100)
	_, err := good.Rebuild(ctx, testSources())
	require.NoError(t, err)

	bad := newTestIndex(store, failingEmbedder{}, nil, 100)
	_, err = bad.Rebuild(ctx, testSources()[:2])
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, errProviderDown)
	assert.Equal(t, len(testSources()), store.Count())

	_, err = bad.Query(ctx, "refund", 3)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestKnowledgeIndex_QueryTimeout(t *testing.T) {
	store := memstore.NewVectorCollection()
	_, err := newTestIndex(store, embedding.NewHashEmbedder(256), nil, 100).Rebuild(context.Background(), testSources())
	require.NoError(t, err)

	ix := newTestIndex(store, slowEmbedder{}, nil, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = ix.Query(ctx, "refund", 3)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestKnowledgeIndex_SkipsMalformedAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 100)

	sources := []domain.SourceRecord{
		{Kind: domain.SourcePolicy, Key: "return", Body: "old return text"},
		{Kind: domain.SourcePage, Key: "/empty.html", Body: "  "},
		{Kind: domain.SourceProduct},
		{Kind: domain.SourcePolicy, Key: "return", Body: "new return text"},
	}
	res, err := ix.Rebuild(ctx, sources)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, res.Errors, 2)

	hits, err := ix.Query(ctx, "return", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Return Policy: new return text", hits[0].Document.Text)
}

func TestKnowledgeIndex_BatchesAndProgress(t *testing.T) {
	ctx := context.Background()
	emb := newCountingEmbedder()
	ix := newTestIndex(memstore.NewVectorCollection(), emb, nil, 2)

	var last, total int
	_, err := ix.Rebuild(ctx, testSources(), WithProgress(func(done, n int) {
		assert.GreaterOrEqual(t, done, last)
		last, total = done, n
	}))
	require.NoError(t, err)

	assert.Equal(t, int32(3), emb.calls.Load())
	assert.Equal(t, 6, last)
	assert.Equal(t, 6, total)
}

func TestKnowledgeIndex_EmptyQueries(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), failingEmbedder{}, nil, 100)

	res, err := ix.Query(ctx, "anything", 0)
	require.NoError(t, err, "empty index must not touch the provider")
	assert.NotNil(t, res)
	assert.Empty(t, res)

	res, err = ix.Query(ctx, "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestKnowledgeIndex_DefaultK(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 100)

	feed, err := source.DefaultFeed().Sources(ctx)
	require.NoError(t, err)
	res, err := ix.Rebuild(ctx, feed)
	require.NoError(t, err)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, len(feed), ix.Count())

	hits, err := ix.Query(ctx, "return policy", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 5)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestKnowledgeIndex_RebuildInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	qc := cache.NewQueryCache(10, time.Minute)
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), qc, 100)

	qc.Put("refund", 3, nil)
	require.Equal(t, 1, qc.Size())

	_, err := ix.Rebuild(ctx, testSources())
	require.NoError(t, err)
	assert.Zero(t, qc.Size())
}

func TestKnowledgeIndex_Upsert(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(memstore.NewVectorCollection(), embedding.NewHashEmbedder(256), nil, 100)

	_, err := ix.Rebuild(ctx, testSources()[:2])
	require.NoError(t, err)

	_, err = ix.Upsert(ctx, []domain.SourceRecord{
		{Kind: domain.SourcePolicy, Key: "return", Body: "Returns accepted within 60 days"},
		{Kind: domain.SourceCategory, Key: "Watches"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Count())

	hits, err := ix.Query(ctx, "Return Policy: Returns accepted within 60 days", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "policy_return", hits[0].Document.ID)
	assert.Contains(t, hits[0].Document.Text, "60 days")
}
