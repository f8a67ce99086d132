package port

import (
	"context"

	"shoprag/internal/domain"
)

// KnowledgeRetriever searches the knowledge index.
type KnowledgeRetriever interface {
	// Query returns the top-k documents for text.
	Query(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error)
}
