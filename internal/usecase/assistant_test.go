package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoprag/config"
	"shoprag/internal/adapter/embedding"
	"shoprag/internal/adapter/matcher"
	"shoprag/internal/adapter/memstore"
	"shoprag/internal/domain"
)

type failingRetriever struct{}

func (failingRetriever) Query(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error) {
	return nil, domain.ErrProviderUnavailable
}

func newTestAssistant(t *testing.T) *Assistant {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Order.Timezone = "UTC"
	emb := embedding.NewHashEmbedder(256)

	ix := NewKnowledgeIndex(memstore.NewVectorCollection(), emb, nil, cfg.Index, nil, nil)
	_, err := ix.Rebuild(context.Background(), testSources())
	require.NoError(t, err)

	shipped := time.Now().Add(-2 * day)
	orders := &fakeOrders{orders: map[string]domain.OrderRecord{
		"42": {OrderID: "42", PlacedAt: time.Now().Add(-3 * day), ShippedAt: &shipped, TrackingNumber: "TRK647975"},
	}}

	return NewAssistant(
		ix,
		matcher.New(emb, cfg.Match, nil, nil),
		&fakeCatalog{items: testItems()},
		NewOrderTracker(orders, cfg.Order, nil, nil),
		nil,
		cfg,
		nil,
	)
}

func TestAssistant_AssembleOrder(t *testing.T) {
	a := newTestAssistant(t)

	out := a.Assemble(context.Background(), "Track TRK647975")
	assert.Equal(t, domain.IntentOrderStatus, out.Intent.Kind)
	require.NotNil(t, out.Order)
	assert.Equal(t, domain.StatusInTransit, out.Order.Status)
	assert.Empty(t, out.Products)

	out = a.Assemble(context.Background(), "where is order #777")
	assert.Nil(t, out.Order)
}

func TestAssistant_AssembleProducts(t *testing.T) {
	a := newTestAssistant(t)

	out := a.Assemble(context.Background(), "I'm looking for a red striped shirt")
	assert.Equal(t, domain.IntentProductSearch, out.Intent.Kind)
	require.NotEmpty(t, out.Products)
	assert.Equal(t, "p1", out.Products[0].ItemID)
	assert.NotEmpty(t, out.Knowledge.Snippets)
	assert.LessOrEqual(t, len(out.Knowledge.Snippets), 3)
	assert.LessOrEqual(t, out.Knowledge.UsedTokens, out.Knowledge.BudgetTokens)

	out = a.Assemble(context.Background(), "help me find the #2 bestselling red striped shirt")
	assert.Equal(t, domain.IntentProductSearch, out.Intent.Kind)
	assert.Empty(t, out.Intent.OrderID)
	assert.Nil(t, out.Order)
	require.NotEmpty(t, out.Products)
	assert.Equal(t, "p1", out.Products[0].ItemID)
}

func TestAssistant_DegradesOnProviderFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	a := NewAssistant(failingRetriever{}, matcher.New(failingEmbedder{}, cfg.Match, nil, nil), nil, nil, nil, cfg, nil)

	docs := a.QueryKnowledge(context.Background(), "refund", 3)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)

	out := a.Assemble(context.Background(), "can I get a refund")
	assert.Equal(t, domain.IntentReturnPolicy, out.Intent.Kind)
	assert.Empty(t, out.Knowledge.Snippets)

	status := a.DeriveOrderStatus(domain.OrderStatusFacts{OrderID: "1", OrderPlacedAt: time.Now()})
	assert.Equal(t, domain.StatusOrderConfirmed, status.Status)

	assert.Empty(t, a.MatchProducts(context.Background(), "shirt", nil, nil, 0))
}
