package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"shoprag/internal/adapter/similarity"
	"shoprag/internal/domain"
)

// snapshot is an immutable view of the collection.
type snapshot struct {
	docs    []domain.KnowledgeDocument
	vectors [][]float64
	byID    map[string]int
	dim     int
}

// VectorCollection is an in-memory vector store. Readers load the current
// snapshot without locking; writers build a new snapshot and swap it in.
type VectorCollection struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

func NewVectorCollection() *VectorCollection {
	c := &VectorCollection{}
	c.current.Store(&snapshot{byID: map[string]int{}})
	return c
}

func buildSnapshot(docs []domain.KnowledgeDocument) (*snapshot, error) {
	s := &snapshot{
		docs:    make([]domain.KnowledgeDocument, 0, len(docs)),
		vectors: make([][]float64, 0, len(docs)),
		byID:    make(map[string]int, len(docs)),
	}
	for _, d := range docs {
		if s.dim == 0 {
			s.dim = len(d.Embedding)
		} else if len(d.Embedding) != s.dim {
			return nil, fmt.Errorf("document %s: dimension %d, collection has %d", d.ID, len(d.Embedding), s.dim)
		}
		if i, ok := s.byID[d.ID]; ok {
			s.docs[i] = d
			s.vectors[i] = similarity.ToFloat64(d.Embedding)
			continue
		}
		s.byID[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
		s.vectors = append(s.vectors, similarity.ToFloat64(d.Embedding))
	}
	return s, nil
}

// Replace swaps the whole collection for docs.
func (c *VectorCollection) Replace(ctx context.Context, docs []domain.KnowledgeDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next, err := buildSnapshot(docs)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.current.Store(next)
	return nil
}

// Upsert copies the live collection, overwrites or appends docs, and swaps.
func (c *VectorCollection) Upsert(ctx context.Context, docs []domain.KnowledgeDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	cur := c.current.Load()
	merged := make([]domain.KnowledgeDocument, 0, len(cur.docs)+len(docs))
	merged = append(merged, cur.docs...)
	merged = append(merged, docs...)

	next, err := buildSnapshot(merged)
	if err != nil {
		return err
	}
	c.current.Store(next)
	return nil
}

// Search ranks the snapshot by cosine similarity to query.
func (c *VectorCollection) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredDocument, error) {
	s := c.current.Load()
	return search(ctx, s, query, k)
}

func search(ctx context.Context, s *snapshot, query []float32, k int) ([]domain.ScoredDocument, error) {
	if len(s.docs) == 0 || k <= 0 {
		return []domain.ScoredDocument{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d, collection has %d", len(query), s.dim)
	}

	q := similarity.ToFloat64(query)
	results := make([]domain.ScoredDocument, len(s.docs))
	for i, v := range s.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sim := similarity.CosineF64(q, v)
		results[i] = domain.ScoredDocument{
			Document:   s.docs[i],
			Distance:   1 - sim,
			Similarity: sim,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns the live document with id.
func (c *VectorCollection) Get(id string) (domain.KnowledgeDocument, bool) {
	s := c.current.Load()
	i, ok := s.byID[id]
	if !ok {
		return domain.KnowledgeDocument{}, false
	}
	return s.docs[i], true
}

func (c *VectorCollection) Count() int {
	return len(c.current.Load().docs)
}

func (c *VectorCollection) Close() error {
	return nil
}
