package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoprag/internal/domain"
)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Items(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "1", Name: "Tote", Category: "bag", Price: 40, StockQuantity: 3, Ranking: 1}))
	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "2", Name: "Watch", Category: "watch", Price: 120, StockQuantity: -1, Ranking: 5}))
	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "3", Name: "Scarf", StockQuantity: 0}))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "2", items[0].ID, "highest ranking first")
	assert.Equal(t, DefaultStock, items[0].StockQuantity, "missing inventory defaults")
	assert.Equal(t, 3, items[1].StockQuantity)
	assert.Equal(t, 0, items[2].StockQuantity)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bag", "watch"}, cats)
}

func TestSQLiteStore_SaveItemUpdates(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "1", Name: "Tote", StockQuantity: 3}))
	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "1", Name: "Big Tote", StockQuantity: 9}))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Big Tote", items[0].Name)
	assert.Equal(t, 9, items[0].StockQuantity)
}

func TestSQLiteStore_PrimaryImages(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: id, Name: "item " + id}))
	}
	require.NoError(t, s.SaveImage(ctx, "1", []byte("secondary"), false))
	require.NoError(t, s.SaveImage(ctx, "1", []byte("primary"), true))
	_, err := s.db.Exec(`UPDATE product SET product_image = ? WHERE product_id = ?`, []byte("legacy"), "2")
	require.NoError(t, err)

	images, err := s.PrimaryImages(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, []byte("primary"), images["1"])
	assert.Equal(t, []byte("legacy"), images["2"])
	_, ok := images["3"]
	assert.False(t, ok)

	empty, err := s.PrimaryImages(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_Orders(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	placed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	shipped := placed.Add(24 * time.Hour)

	require.NoError(t, s.SaveOrder(ctx, domain.OrderRecord{OrderID: "#1001", CustomerEmail: "a@example.com", PlacedAt: placed}))
	require.NoError(t, s.SaveOrder(ctx, domain.OrderRecord{OrderID: "1002", PlacedAt: placed, ShippedAt: &shipped, TrackingNumber: "TRK123456"}))

	rec, err := s.GetOrder(ctx, " #1001 ")
	require.NoError(t, err)
	assert.Equal(t, "1001", rec.OrderID)
	assert.True(t, rec.PlacedAt.Equal(placed))
	assert.Nil(t, rec.ShippedAt)
	assert.Empty(t, rec.TrackingNumber)

	rec, err = s.GetOrderByTracking(ctx, "TRK123456")
	require.NoError(t, err)
	assert.Equal(t, "1002", rec.OrderID)
	require.NotNil(t, rec.ShippedAt)
	assert.True(t, rec.ShippedAt.Equal(shipped))

	_, err = s.GetOrder(ctx, "9999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetOrderByTracking(ctx, "TRK000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_Import(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tote.jpg"), []byte("jpeg"), 0644))
	seed := `
items:
  - id: "10"
    name: Canvas Tote
    description: Roomy canvas tote bag
    category: bag
    price: 25.5
    stock: 4
    image: tote.jpg
  - id: "11"
    name: Silk Scarf
    category: accessories
orders:
  - id: "#2001"
    email: b@example.com
    placed_at: 2024-06-01T09:00:00Z
    shipped_at: 2024-06-02T09:00:00Z
    tracking: TRK200101
`
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0644))

	s := openTest(t)
	ctx := context.Background()
	stats, err := s.ImportFile(ctx, seedPath)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Items: 2, Images: 1, Orders: 1}, stats)

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.ID == "11" {
			assert.Equal(t, DefaultStock, it.StockQuantity)
		}
	}

	images, err := s.PrimaryImages(ctx, []string{"10"})
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), images["10"])

	rec, err := s.GetOrderByTracking(ctx, "TRK200101")
	require.NoError(t, err)
	assert.Equal(t, "2001", rec.OrderID)
}

func TestSQLiteStore_ImportRejectsMalformed(t *testing.T) {
	s := openTest(t)
	_, err := s.Import(context.Background(), []byte("items:\n  - name: nameless\n"), "")
	assert.ErrorIs(t, err, domain.ErrMalformedSource)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveItem(ctx, domain.CatalogItem{ID: "1", Name: "Tote"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
