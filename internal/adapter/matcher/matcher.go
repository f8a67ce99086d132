package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/adapter/similarity"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// Matcher ranks catalog items against a free-text description, optionally
// steered by an uploaded image's feature vector.
type Matcher struct {
	cfg      config.MatchConfig
	vocab    *Vocabulary
	embedder port.Embedder
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a matcher. A nil embedder disables the semantic signal.
func New(embedder port.Embedder, cfg config.MatchConfig, log *zap.Logger, m *metrics.Metrics) *Matcher {
	return &Matcher{
		cfg:      cfg,
		vocab:    DefaultVocabulary(),
		embedder: embedder,
		log:      logger.OrNop(log),
		metrics:  m,
	}
}

// ExtractKeywords returns the capped keyword list of description.
func (m *Matcher) ExtractKeywords(description string) []string {
	return m.vocab.ExtractKeywords(description, m.cfg.MaxKeywords)
}

// DetectCategory returns the coarse category description refers to.
func (m *Matcher) DetectCategory(description string) string {
	return m.vocab.DetectCategory(description)
}

// Score computes the four signals and the composite score of one item.
func (m *Matcher) Score(ctx context.Context, description string, item domain.CatalogItem) domain.MatchResult {
	return m.score(ctx, description, []domain.CatalogItem{item})[0]
}

// Match ranks candidates and returns at most limit results. Without an
// image signal, items are ordered by composite score. With one, items whose
// stored feature vector is more similar than the visual threshold come
// first, followed by the best composite matches among the rest.
// Duplicate item IDs keep their first occurrence.
func (m *Matcher) Match(ctx context.Context, description string, candidates []domain.CatalogItem, signal *domain.ImageSignal, limit int) []domain.MatchResult {
	start := time.Now()
	path := "text"
	if signal != nil && len(signal.Vector) > 0 {
		path = "image"
	}
	defer func() {
		m.metrics.ObserveMatch(path, time.Since(start).Seconds())
	}()

	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}
	candidates = lo.UniqBy(candidates, func(c domain.CatalogItem) string { return c.ID })
	if len(candidates) == 0 {
		return []domain.MatchResult{}
	}

	scored := m.score(ctx, description, candidates)

	var results []domain.MatchResult
	if path == "image" {
		results = m.rankWithImage(scored, signal)
	} else {
		results = m.rankComposite(scored)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	m.log.Debug("matched catalog",
		zap.String("path", path),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results
}

func (m *Matcher) score(ctx context.Context, description string, items []domain.CatalogItem) []domain.MatchResult {
	desc := newTextIndex(description)
	keywords := m.ExtractKeywords(description)
	kwPhrases := lo.Map(keywords, func(kw string, _ int) phrase { return newPhrase(kw) })
	detected := m.DetectCategory(description)
	semantic := m.semantic(ctx, description, items)

	out := make([]domain.MatchResult, len(items))
	for i, item := range items {
		full := newTextIndex(itemText(item))
		named := newTextIndex(item.Name + " " + item.Description)

		sig := domain.SignalBreakdown{
			Semantic:   semantic[i],
			Keyword:    keywordSignal(kwPhrases, full),
			Category:   m.vocab.categorySignal(desc, item.Category),
			VisualText: m.vocab.visualTextSignal(desc, named),
		}
		composite := m.composite(sig)
		out[i] = domain.MatchResult{
			ItemID:           item.ID,
			Item:             item,
			CompositeScore:   composite,
			Signals:          sig,
			Similarity:       composite,
			MatchReason:      compositeReason(sig, item),
			DetectedCategory: detected,
			Keywords:         keywords,
		}
	}
	return out
}

func itemText(item domain.CatalogItem) string {
	return strings.TrimSpace(item.Name + " " + item.Description + " " + item.Category)
}

// semantic embeds the description and every item text in one call. Any
// provider failure degrades the signal to 0 for all items.
func (m *Matcher) semantic(ctx context.Context, description string, items []domain.CatalogItem) []float64 {
	scores := make([]float64, len(items))
	if m.embedder == nil || strings.TrimSpace(description) == "" {
		return scores
	}

	texts := make([]string, 0, len(items)+1)
	texts = append(texts, description)
	pos := make([]int, len(items)) // index into texts, 0 = not embedded
	for i, item := range items {
		if t := itemText(item); t != "" {
			pos[i] = len(texts)
			texts = append(texts, t)
		}
	}

	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		m.metrics.ProviderFailure("matcher")
		m.log.Warn("semantic signal unavailable", zap.Error(err), zap.Int("vectors", len(vecs)))
		return scores
	}

	for i, p := range pos {
		if p == 0 {
			continue
		}
		sim, err := similarity.Cosine(vecs[0], vecs[p])
		if err != nil {
			m.log.Warn("semantic signal skipped", zap.String("item", items[i].ID), zap.Error(err))
			continue
		}
		scores[i] = similarity.Clamp01(sim)
	}
	return scores
}

func (m *Matcher) composite(sig domain.SignalBreakdown) float64 {
	return similarity.Clamp01(
		m.cfg.SemanticWeight*sig.Semantic +
			m.cfg.KeywordWeight*sig.Keyword +
			m.cfg.CategoryWeight*sig.Category +
			m.cfg.VisualTextWeight*sig.VisualText,
	)
}

func compositeReason(sig domain.SignalBreakdown, item domain.CatalogItem) string {
	switch {
	case sig.Category >= 1:
		return "Category match: " + item.Category
	case sig.Category > 0:
		return "Related category: " + item.Category
	case sig.Keyword > 0:
		return fmt.Sprintf("Keyword match: %.0f%%", sig.Keyword*100)
	default:
		return fmt.Sprintf("Semantic similarity: %.1f%%", sig.Semantic*100)
	}
}

// rankComposite keeps results scoring above the minimum, best first.
func (m *Matcher) rankComposite(results []domain.MatchResult) []domain.MatchResult {
	kept := lo.Filter(results, func(r domain.MatchResult, _ int) bool {
		return r.CompositeScore > m.cfg.MinScore
	})
	sortResults(kept, func(r domain.MatchResult) float64 { return r.CompositeScore })
	return kept
}

func (m *Matcher) rankWithImage(scored []domain.MatchResult, signal *domain.ImageSignal) []domain.MatchResult {
	visual := make([]domain.MatchResult, 0)
	rest := make([]domain.MatchResult, 0, len(scored))

	for _, r := range scored {
		feat := signal.ItemFeatures[r.ItemID]
		if len(feat) == 0 {
			rest = append(rest, r)
			continue
		}
		sim, err := similarity.Cosine(signal.Vector, feat)
		if err != nil {
			m.log.Warn("image feature not comparable", zap.String("item", r.ItemID), zap.Error(err))
			rest = append(rest, r)
			continue
		}
		if sim > m.cfg.VisualThreshold {
			r.Similarity = sim
			r.VisualMatch = true
			r.MatchReason = fmt.Sprintf("Visual similarity: %.1f%%", sim*100)
			visual = append(visual, r)
			continue
		}
		rest = append(rest, r)
	}

	sortResults(visual, func(r domain.MatchResult) float64 { return r.Similarity })
	visual = capResults(visual, m.cfg.VisualCap)
	rest = capResults(m.rankComposite(rest), m.cfg.CompositeCap)

	return lo.UniqBy(append(visual, rest...), func(r domain.MatchResult) string { return r.ItemID })
}

// sortResults orders by key descending, then ranking descending, then ID.
func sortResults(results []domain.MatchResult, key func(domain.MatchResult) float64) {
	sort.SliceStable(results, func(i, j int) bool {
		ki, kj := key(results[i]), key(results[j])
		if ki != kj {
			return ki > kj
		}
		if results[i].Item.Ranking != results[j].Item.Ranking {
			return results[i].Item.Ranking > results[j].Item.Ranking
		}
		return results[i].ItemID < results[j].ItemID
	})
}

func capResults(results []domain.MatchResult, n int) []domain.MatchResult {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
