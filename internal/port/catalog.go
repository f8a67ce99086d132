package port

import (
	"context"

	"shoprag/internal/domain"
)

// CatalogStore is read-only access to the product catalog.
type CatalogStore interface {
	ListItems(ctx context.Context) ([]domain.CatalogItem, error)

	ListCategories(ctx context.Context) ([]string, error)

	// PrimaryImages returns the primary image blob for each id that has one.
	PrimaryImages(ctx context.Context, ids []string) (map[string][]byte, error)
}

// OrderStore is read-only access to orders and their shipping rows.
type OrderStore interface {
	// GetOrder returns domain.ErrNotFound when the order does not exist.
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)

	// GetOrderByTracking returns domain.ErrNotFound when no shipment carries the number.
	GetOrderByTracking(ctx context.Context, tracking string) (*domain.OrderRecord, error)
}

// SourceFeed yields the knowledge-source records a rebuild renders.
type SourceFeed interface {
	Sources(ctx context.Context) ([]domain.SourceRecord, error)
}
