package port

import (
	"context"

	"shoprag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore holds the knowledge collection and searches it.
type VectorStore interface {
	// Replace swaps the whole collection for docs. Concurrent Search calls
	// observe either the old or the new collection, never a mix.
	Replace(ctx context.Context, docs []domain.KnowledgeDocument) error

	// Upsert adds or overwrites documents by ID in the live collection.
	Upsert(ctx context.Context, docs []domain.KnowledgeDocument) error

	// Search finds the k documents nearest to the query vector,
	// ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredDocument, error)

	// Count returns the number of documents in the live collection.
	Count() int

	// Close releases the store.
	Close() error
}
