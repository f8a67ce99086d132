package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"shoprag/internal/adapter/catalog/migrations"
	"shoprag/internal/domain"
	"shoprag/internal/port"
)

// DefaultStock is reported for items without an inventory row.
const DefaultStock = 10

// SQLiteStore is the catalog and order database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var (
	_ port.CatalogStore = (*SQLiteStore)(nil)
	_ port.OrderStore   = (*SQLiteStore)(nil)
)

// Open opens (or creates) the catalog database at path and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Catalog ====================

// ListItems returns every product ordered by ranking, best first.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.product_id, p.product_name, p.product_description,
		       COALESCE(p.product_type, ''), p.product_price, p.product_ranking,
		       i.stock_quantity
		FROM product p
		LEFT JOIN inventory i ON p.product_id = i.product_id
		ORDER BY p.product_ranking DESC, p.product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var item domain.CatalogItem
		var stock sql.NullInt64
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Category,
			&item.Price, &item.Ranking, &stock); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		item.StockQuantity = DefaultStock
		if stock.Valid {
			item.StockQuantity = int(stock.Int64)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListCategories returns the distinct non-empty product types.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT product_type FROM product
		WHERE product_type IS NOT NULL AND product_type != ''
		ORDER BY product_type
	`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// PrimaryImages returns the primary image of each product, falling back
// to the image stored on the product row.
func (s *SQLiteStore) PrimaryImages(ctx context.Context, ids []string) (map[string][]byte, error) {
	images := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return images, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	query := fmt.Sprintf(`
		SELECT product_id, image_data FROM product_images
		WHERE product_id IN (%s) AND is_primary = 1 AND image_data IS NOT NULL
		ORDER BY image_id
	`, placeholders)
	if err := s.collectImages(ctx, images, query, args...); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`
		SELECT product_id, product_image FROM product
		WHERE product_id IN (%s) AND product_image IS NOT NULL
	`, placeholders)
	if err := s.collectImages(ctx, images, query, args...); err != nil {
		return nil, err
	}

	return images, nil
}

// collectImages adds rows to images without overwriting earlier entries.
func (s *SQLiteStore) collectImages(ctx context.Context, images map[string][]byte, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scanning image: %w", err)
		}
		if _, seen := images[id]; seen || len(data) == 0 {
			continue
		}
		images[id] = data
	}
	return rows.Err()
}

// SaveItem inserts or updates a product. A negative stock leaves the
// inventory row absent.
func (s *SQLiteStore) SaveItem(ctx context.Context, item domain.CatalogItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO product (product_id, product_name, product_description, product_type, product_price, product_ranking)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			product_name = excluded.product_name,
			product_description = excluded.product_description,
			product_type = excluded.product_type,
			product_price = excluded.product_price,
			product_ranking = excluded.product_ranking
	`, item.ID, item.Name, item.Description, nullString(item.Category), item.Price, item.Ranking)
	if err != nil {
		return fmt.Errorf("saving product %s: %w", item.ID, err)
	}

	if item.StockQuantity >= 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (product_id, stock_quantity) VALUES (?, ?)
			ON CONFLICT(product_id) DO UPDATE SET stock_quantity = excluded.stock_quantity
		`, item.ID, item.StockQuantity)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, item.ID)
	}
	if err != nil {
		return fmt.Errorf("saving inventory %s: %w", item.ID, err)
	}

	return tx.Commit()
}

// SaveImage stores an image for a product.
func (s *SQLiteStore) SaveImage(ctx context.Context, productID string, data []byte, primary bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_images (product_id, image_data, is_primary) VALUES (?, ?, ?)
	`, productID, data, boolInt(primary))
	if err != nil {
		return fmt.Errorf("saving image for %s: %w", productID, err)
	}
	return nil
}

// ==================== Orders ====================

// NormalizeOrderID strips a leading '#' and surrounding spaces.
func NormalizeOrderID(id string) string {
	return strings.TrimSpace(strings.ReplaceAll(id, "#", ""))
}

const orderQuery = `
	SELECT o.order_id, o.customer_email, o.placed_at, s.tracking_number, s.shipped_at
	FROM orders o
	LEFT JOIN shipping s ON o.order_id = s.order_id
`

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	row := s.db.QueryRowContext(ctx, orderQuery+` WHERE o.order_id = ?`, NormalizeOrderID(orderID))
	return scanOrder(row)
}

func (s *SQLiteStore) GetOrderByTracking(ctx context.Context, tracking string) (*domain.OrderRecord, error) {
	row := s.db.QueryRowContext(ctx, orderQuery+` WHERE s.tracking_number = ?`, strings.TrimSpace(tracking))
	return scanOrder(row)
}

func scanOrder(row *sql.Row) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var placed int64
	var tracking sql.NullString
	var shipped sql.NullInt64

	err := row.Scan(&rec.OrderID, &rec.CustomerEmail, &placed, &tracking, &shipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	rec.PlacedAt = time.Unix(placed, 0)
	if shipped.Valid {
		t := time.Unix(shipped.Int64, 0)
		rec.ShippedAt = &t
	}
	rec.TrackingNumber = tracking.String
	return &rec, nil
}

// SaveOrder inserts or updates an order and its shipping row.
func (s *SQLiteStore) SaveOrder(ctx context.Context, rec domain.OrderRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := NormalizeOrderID(rec.OrderID)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, customer_email, placed_at) VALUES (?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			customer_email = excluded.customer_email,
			placed_at = excluded.placed_at
	`, id, rec.CustomerEmail, rec.PlacedAt.Unix())
	if err != nil {
		return fmt.Errorf("saving order %s: %w", id, err)
	}

	if rec.ShippedAt != nil || rec.TrackingNumber != "" {
		var shipped any
		if rec.ShippedAt != nil {
			shipped = rec.ShippedAt.Unix()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shipping (order_id, tracking_number, shipped_at) VALUES (?, ?, ?)
			ON CONFLICT(order_id) DO UPDATE SET
				tracking_number = excluded.tracking_number,
				shipped_at = excluded.shipped_at
		`, id, nullString(rec.TrackingNumber), shipped)
		if err != nil {
			return fmt.Errorf("saving shipping for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
