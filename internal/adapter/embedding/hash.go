package embedding

import (
	"context"
	"hash/fnv"

	"shoprag/internal/adapter/analyzer"
	"shoprag/internal/adapter/similarity"
)

// HashEmbedder is a deterministic offline embedder: bag-of-words feature
// hashing over folded tokens, L2-normalised. Texts sharing words get
// positive cosine similarity; identical texts get identical vectors.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	acc := make([]float64, e.dimension)
	for _, tok := range e.tokenizer.Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		acc[sum%uint64(e.dimension)] += 1
	}
	similarity.Normalize(acc)

	vec := make([]float32, e.dimension)
	for i, x := range acc {
		vec[i] = float32(x)
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
