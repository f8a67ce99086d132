package usecase

import (
	"fmt"
	"sort"

	"shoprag/internal/adapter/analyzer"
	"shoprag/internal/domain"
)

// SnippetPacker fits knowledge hits into a prompt token budget.
type SnippetPacker struct {
	tokenizer *analyzer.Tokenizer
}

// NewSnippetPacker creates a new packer.
func NewSnippetPacker(tokenizer *analyzer.Tokenizer) *SnippetPacker {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer(false)
	}
	return &SnippetPacker{tokenizer: tokenizer}
}

// Pack packs scored documents into a context that fits the token budget.
func (p *SnippetPacker) Pack(query string, docs []domain.ScoredDocument, budget int) domain.PackedContext {
	packed := domain.PackedContext{
		Query:        query,
		BudgetTokens: budget,
		Snippets:     []domain.Snippet{},
	}
	if len(docs) == 0 || budget <= 0 {
		return packed
	}

	type rankedDoc struct {
		doc     domain.ScoredDocument
		utility float64
		tokens  int
	}

	ranked := make([]rankedDoc, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.Document.ID]; dup {
			continue
		}
		seen[d.Document.ID] = struct{}{}

		tokens := p.tokenizer.CountTokens(d.Document.Text)
		if tokens == 0 {
			tokens = 1
		}
		// Utility = similarity per token spent
		ranked = append(ranked, rankedDoc{
			doc:     d,
			utility: d.Similarity / float64(tokens),
			tokens:  tokens,
		})
	}

	// Best value first; equal value keeps the more similar document
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].utility != ranked[j].utility {
			return ranked[i].utility > ranked[j].utility
		}
		return ranked[i].doc.Similarity > ranked[j].doc.Similarity
	})

	// Greedy selection until budget is exhausted
	for _, rd := range ranked {
		if packed.UsedTokens+rd.tokens > budget {
			continue // Skip if it would exceed budget
		}
		packed.Snippets = append(packed.Snippets, domain.Snippet{
			ID:   rd.doc.Document.ID,
			Why:  why(rd.doc),
			Text: rd.doc.Document.Text,
		})
		packed.UsedTokens += rd.tokens
	}

	return packed
}

func why(d domain.ScoredDocument) string {
	if kind := d.Document.Metadata["type"]; kind != "" {
		return fmt.Sprintf("%s, similarity %.2f", kind, d.Similarity)
	}
	return fmt.Sprintf("similarity %.2f", d.Similarity)
}
