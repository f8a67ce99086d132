package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shoprag/internal/domain"
)

// seedFile is the YAML layout accepted by Import.
type seedFile struct {
	Items []struct {
		ID          string  `yaml:"id"`
		Name        string  `yaml:"name"`
		Description string  `yaml:"description"`
		Category    string  `yaml:"category"`
		Price       float64 `yaml:"price"`
		Stock       *int    `yaml:"stock"`
		Ranking     float64 `yaml:"ranking"`
		Image       string  `yaml:"image"`
	} `yaml:"items"`
	Orders []struct {
		ID        string     `yaml:"id"`
		Email     string     `yaml:"email"`
		PlacedAt  time.Time  `yaml:"placed_at"`
		ShippedAt *time.Time `yaml:"shipped_at"`
		Tracking  string     `yaml:"tracking"`
	} `yaml:"orders"`
}

// ImportStats counts what Import wrote.
type ImportStats struct {
	Items  int
	Images int
	Orders int
}

// ImportFile loads a YAML seed file. Image paths are relative to the file.
func (s *SQLiteStore) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportStats{}, err
	}
	return s.Import(ctx, data, filepath.Dir(path))
}

// Import writes the items and orders of a YAML seed document.
func (s *SQLiteStore) Import(ctx context.Context, data []byte, baseDir string) (ImportStats, error) {
	var stats ImportStats

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return stats, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, it := range f.Items {
		if it.ID == "" || it.Name == "" {
			return stats, fmt.Errorf("%w: item needs id and name", domain.ErrMalformedSource)
		}
		stock := -1
		if it.Stock != nil {
			stock = *it.Stock
		}
		err := s.SaveItem(ctx, domain.CatalogItem{
			ID:            it.ID,
			Name:          it.Name,
			Description:   it.Description,
			Category:      it.Category,
			Price:         it.Price,
			StockQuantity: stock,
			Ranking:       it.Ranking,
		})
		if err != nil {
			return stats, err
		}
		stats.Items++

		if it.Image != "" {
			imgPath := it.Image
			if !filepath.IsAbs(imgPath) {
				imgPath = filepath.Join(baseDir, imgPath)
			}
			img, err := os.ReadFile(imgPath)
			if err != nil {
				return stats, fmt.Errorf("reading image for %s: %w", it.ID, err)
			}
			if err := s.SaveImage(ctx, it.ID, img, true); err != nil {
				return stats, err
			}
			stats.Images++
		}
	}

	for _, o := range f.Orders {
		if o.ID == "" || o.PlacedAt.IsZero() {
			return stats, fmt.Errorf("%w: order needs id and placed_at", domain.ErrMalformedSource)
		}
		err := s.SaveOrder(ctx, domain.OrderRecord{
			OrderID:        o.ID,
			CustomerEmail:  o.Email,
			PlacedAt:       o.PlacedAt,
			ShippedAt:      o.ShippedAt,
			TrackingNumber: o.Tracking,
		})
		if err != nil {
			return stats, err
		}
		stats.Orders++
	}

	return stats, nil
}
