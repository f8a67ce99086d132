package source

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shoprag/internal/domain"
)

var titler = cases.Title(language.English)

// Render turns one source record into its knowledge document (without
// embedding). IDs are stable across rebuilds for the same logical entity.
// Records missing their required text fail with domain.ErrMalformedSource.
func Render(rec domain.SourceRecord) (domain.KnowledgeDocument, error) {
	switch rec.Kind {
	case domain.SourcePage:
		if rec.Key == "" || strings.TrimSpace(rec.Body) == "" {
			return malformed(rec, "page needs a path and a description")
		}
		return domain.KnowledgeDocument{
			ID:       "page_" + strings.ReplaceAll(rec.Key, "/", "_"),
			Text:     fmt.Sprintf("Page %s: %s", rec.Key, rec.Body),
			Metadata: map[string]string{"type": "page", "page": rec.Key},
		}, nil

	case domain.SourceFeature:
		if rec.Key == "" || strings.TrimSpace(rec.Body) == "" {
			return malformed(rec, "feature needs a key and text")
		}
		return domain.KnowledgeDocument{
			ID:       "feature_" + rec.Key,
			Text:     "Website feature: " + rec.Body,
			Metadata: map[string]string{"type": "feature", "feature_id": rec.Key},
		}, nil

	case domain.SourcePolicy:
		if rec.Key == "" || strings.TrimSpace(rec.Body) == "" {
			return malformed(rec, "policy needs a type and text")
		}
		label := rec.Title
		if label == "" {
			label = titler.String(rec.Key)
		}
		return domain.KnowledgeDocument{
			ID:       "policy_" + rec.Key,
			Text:     fmt.Sprintf("%s Policy: %s", label, rec.Body),
			Metadata: map[string]string{"type": "policy", "policy_type": rec.Key},
		}, nil

	case domain.SourceCategory:
		name := strings.TrimSpace(rec.Key)
		if name == "" {
			return malformed(rec, "category needs a name")
		}
		return domain.KnowledgeDocument{
			ID:       "category_" + strings.ReplaceAll(strings.ToLower(name), " ", "_"),
			Text:     "Product category: " + name,
			Metadata: map[string]string{"type": "category", "category": name},
		}, nil

	case domain.SourceProduct:
		item := rec.Item
		if item == nil || item.ID == "" || strings.TrimSpace(item.Name) == "" {
			return malformed(rec, "product needs an id and a name")
		}
		price := strconv.FormatFloat(item.Price, 'f', 2, 64)
		return domain.KnowledgeDocument{
			ID: "product_" + item.ID,
			Text: fmt.Sprintf("Product: %s - %s - Category: %s - Price: $%s - Stock: %d",
				item.Name, item.Description, item.Category, price, item.StockQuantity),
			Metadata: map[string]string{
				"type":       "product",
				"product_id": item.ID,
				"category":   item.Category,
				"price":      price,
			},
		}, nil
	}

	return malformed(rec, "unknown kind")
}

func malformed(rec domain.SourceRecord, reason string) (domain.KnowledgeDocument, error) {
	return domain.KnowledgeDocument{}, fmt.Errorf("%w: %s %q: %s", domain.ErrMalformedSource, rec.Kind, rec.Key, reason)
}
