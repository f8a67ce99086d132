package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"shoprag/internal/adapter/embedding"
	"shoprag/internal/domain"
)

var errProviderDown = errors.New("provider down")

// countingEmbedder wraps the hash embedder and counts calls.
type countingEmbedder struct {
	inner *embedding.HashEmbedder
	calls atomic.Int32
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embedding.NewHashEmbedder(256)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return "counting" }

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errProviderDown
}
func (failingEmbedder) Dimension() int    { return 256 }
func (failingEmbedder) ModelName() string { return "failing" }

// slowEmbedder blocks until the context is done.
type slowEmbedder struct{}

func (slowEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowEmbedder) Dimension() int    { return 256 }
func (slowEmbedder) ModelName() string { return "slow" }

// blockingEmbedder signals on started and waits for release.
type blockingEmbedder struct {
	inner   *embedding.HashEmbedder
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingEmbedder() *blockingEmbedder {
	return &blockingEmbedder{
		inner:   embedding.NewHashEmbedder(256),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.inner.Embed(ctx, texts)
}
func (b *blockingEmbedder) Dimension() int    { return 256 }
func (b *blockingEmbedder) ModelName() string { return "blocking" }

type fakeCatalog struct {
	items  []domain.CatalogItem
	images map[string][]byte
	err    error
}

func (f *fakeCatalog) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]string, error) {
	var cats []string
	for _, it := range f.items {
		cats = append(cats, it.Category)
	}
	return cats, nil
}

func (f *fakeCatalog) PrimaryImages(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, id := range ids {
		if img, ok := f.images[id]; ok {
			out[id] = img
		}
	}
	return out, nil
}

type fakeOrders struct {
	orders map[string]domain.OrderRecord
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	rec, ok := f.orders[strings.TrimPrefix(strings.TrimSpace(orderID), "#")]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeOrders) GetOrderByTracking(ctx context.Context, tracking string) (*domain.OrderRecord, error) {
	for _, rec := range f.orders {
		if rec.TrackingNumber != "" && rec.TrackingNumber == tracking {
			r := rec
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func testSources() []domain.SourceRecord {
	return []domain.SourceRecord{
		{Kind: domain.SourcePolicy, Key: "return", Body: "Items can be returned within 30 days of delivery for a full refund"},
		{Kind: domain.SourcePolicy, Key: "shipping", Body: "Free shipping on orders over $50, standard delivery takes 3-5 business days"},
		{Kind: domain.SourcePage, Key: "/cart.html", Body: "Shopping cart page where customers review items before checkout"},
		{Kind: domain.SourceFeature, Key: "0", Body: "Search products by uploading a photo"},
		{Kind: domain.SourceCategory, Key: "Summer Dresses"},
		{Kind: domain.SourceProduct, Item: &domain.CatalogItem{
			ID: "7", Name: "Red Cotton Shirt", Description: "Soft red cotton shirt", Category: "shirt",
			Price: 19.99, StockQuantity: 10,
		}},
	}
}

func testItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: "p1", Name: "Red Striped Shirt", Description: "Casual red striped cotton shirt", Category: "shirt", Ranking: 4},
		{ID: "p2", Name: "Leather Handbag", Description: "Brown leather handbag", Category: "bag", Ranking: 5},
		{ID: "p3", Name: "Blue Jeans", Description: "Slim blue denim jeans", Category: "jeans", Ranking: 3},
	}
}
