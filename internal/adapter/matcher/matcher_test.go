package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoprag/config"
	"shoprag/internal/adapter/embedding"
	"shoprag/internal/adapter/similarity"
	"shoprag/internal/domain"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Dimension() int    { return 8 }
func (failingEmbedder) ModelName() string { return "failing" }

func newTestMatcher(t *testing.T, mutate func(*config.MatchConfig)) *Matcher {
	t.Helper()
	cfg := config.DefaultConfig().Match
	if mutate != nil {
		mutate(&cfg)
	}
	return New(embedding.NewHashEmbedder(256), cfg, nil, nil)
}

var (
	redShirt = domain.CatalogItem{
		ID: "p1", Name: "Red Cotton Shirt", Description: "Soft red cotton shirt with long sleeves",
		Category: "shirt", Ranking: 4.1,
	}
	blueBoots = domain.CatalogItem{
		ID: "p2", Name: "Blue Leather Boots", Description: "Sturdy blue leather boots",
		Category: "shoes", Ranking: 4.8,
	}
	floralDress = domain.CatalogItem{
		ID: "p3", Name: "Floral Summer Dress", Description: "Light floral print dress",
		Category: "dress", Ranking: 3.9,
	}
)

func TestExtractKeywords(t *testing.T) {
	v := DefaultVocabulary()

	assert.Equal(t,
		[]string{"shirt", "red", "cotton", "long", "sleeve"},
		v.ExtractKeywords("Looking for a red cotton shirt with long sleeves", 8))

	assert.Equal(t, []string{"sportswear"}, v.ExtractKeywords("comfy sportswear for runs", 8))
	assert.Equal(t, []string{"dress"}, v.ExtractKeywords("dresses, any dress", 8))
	assert.Empty(t, v.ExtractKeywords("", 8))
	assert.Empty(t, v.ExtractKeywords("something unrelated", 8))

	long := "red blue green black white cotton wool silk linen striped floral casual"
	assert.Len(t, v.ExtractKeywords(long, 8), 8)
	assert.Len(t, v.ExtractKeywords(long, 0), 12)
}

func TestExtractKeywords_WholeWords(t *testing.T) {
	v := DefaultVocabulary()
	// "bedroom" contains "red" and "top" is inside "stop"
	assert.Empty(t, v.ExtractKeywords("stop by the bedroom", 8))
}

func TestDetectCategory(t *testing.T) {
	v := DefaultVocabulary()

	tests := map[string]string{
		"blue denim jeans":         "jeans",
		"a shirt and a bag":        "shirt",
		"leather handbag":          "bag",
		"white t-shirt":            "shirt",
		"gold smartwatch":          "watch",
		"a nice outfit for dinner": "clothing",
		"garments on sale":         "clothing",
		"hello there":              "general",
		"":                         "general",
	}
	for desc, want := range tests {
		assert.Equal(t, want, v.DetectCategory(desc), desc)
	}
}

func TestCategorySignal(t *testing.T) {
	v := DefaultVocabulary()

	tests := []struct {
		desc     string
		category string
		want     float64
	}{
		{"red shirt", "shirt", 1},
		{"red shirts", "Shirt", 1},
		{"a nice blouse", "shirt", 0.8},
		{"I want a shirt", "top", 0.8},
		{"comfy footwear", "shoes", 0.8},
		{"leather boots", "bag", 0},
		{"", "shirt", 0},
		{"red shirt", "", 0},
	}
	for _, tt := range tests {
		got := v.categorySignal(newTextIndex(tt.desc), tt.category)
		assert.InDelta(t, tt.want, got, 1e-9, "%q vs %q", tt.desc, tt.category)
	}
}

func TestVisualTextSignal(t *testing.T) {
	v := DefaultVocabulary()
	require.Equal(t, 27, v.VisualSize())

	desc := newTextIndex("red striped casual shirt in blue")
	item := newTextIndex("Red Striped Shirt casual cotton")
	assert.InDelta(t, 3.0/27.0, v.visualTextSignal(desc, item), 1e-9)

	assert.Zero(t, v.visualTextSignal(newTextIndex(""), item))
}

func TestKeywordSignal(t *testing.T) {
	kws := []phrase{newPhrase("red"), newPhrase("cotton"), newPhrase("shirt"), newPhrase("silk")}
	got := keywordSignal(kws, newTextIndex(itemText(redShirt)))
	assert.InDelta(t, 0.75, got, 1e-9)
	assert.Zero(t, keywordSignal(nil, newTextIndex("anything")))
}

func TestMatch_TextPathRanksBestFirst(t *testing.T) {
	m := newTestMatcher(t, nil)
	ctx := context.Background()

	results := m.Match(ctx, "red cotton shirt", []domain.CatalogItem{blueBoots, floralDress, redShirt}, nil, 0)
	require.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].ItemID)
	assert.Equal(t, "shirt", results[0].DetectedCategory)
	assert.Equal(t, "Category match: shirt", results[0].MatchReason)
	assert.False(t, results[0].VisualMatch)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.CompositeScore, 0.0)
		assert.LessOrEqual(t, r.CompositeScore, 1.0)
		assert.Greater(t, r.CompositeScore, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].CompositeScore, r.CompositeScore)
		}
	}
}

func TestScore_SignalsWithinBounds(t *testing.T) {
	m := newTestMatcher(t, nil)
	r := m.Score(context.Background(), "red cotton shirt", redShirt)

	assert.InDelta(t, 1.0, r.Signals.Keyword, 1e-9)
	assert.InDelta(t, 1.0, r.Signals.Category, 1e-9)
	assert.InDelta(t, 1.0/27.0, r.Signals.VisualText, 1e-9)
	assert.Greater(t, r.Signals.Semantic, 0.0)
	assert.LessOrEqual(t, r.Signals.Semantic, 1.0)

	want := 0.4*r.Signals.Semantic + 0.3 + 0.2 + 0.1/27.0
	assert.InDelta(t, want, r.CompositeScore, 1e-9)
}

func TestScore_CompositeIsCapped(t *testing.T) {
	m := newTestMatcher(t, func(c *config.MatchConfig) {
		c.KeywordWeight = 1
		c.CategoryWeight = 1
	})
	r := m.Score(context.Background(), "red cotton shirt", redShirt)
	assert.Equal(t, 1.0, r.CompositeScore)
}

func TestMatch_EmptyInputs(t *testing.T) {
	m := newTestMatcher(t, nil)
	ctx := context.Background()

	results := m.Match(ctx, "red shirt", nil, nil, 0)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	assert.Empty(t, m.Match(ctx, "", []domain.CatalogItem{redShirt, blueBoots}, nil, 0))

	r := m.Score(ctx, "", redShirt)
	assert.Equal(t, domain.SignalBreakdown{}, r.Signals)
	assert.Zero(t, r.CompositeScore)
	assert.Equal(t, "general", r.DetectedCategory)
}

func TestMatch_DeduplicatesCandidates(t *testing.T) {
	m := newTestMatcher(t, nil)
	results := m.Match(context.Background(), "red cotton shirt",
		[]domain.CatalogItem{redShirt, redShirt, redShirt}, nil, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ItemID)
}

func TestMatch_LimitAndTieBreak(t *testing.T) {
	m := newTestMatcher(t, nil)

	var items []domain.CatalogItem
	for i, id := range []string{"c", "a", "b", "d"} {
		items = append(items, domain.CatalogItem{
			ID: id, Name: "Plain Shirt", Description: "A shirt", Category: "shirt",
			Ranking: float64(i % 2),
		})
	}

	results := m.Match(context.Background(), "shirt", items, nil, 3)
	require.Len(t, results, 3)
	// equal scores: higher ranking first, then ID
	assert.Equal(t, []string{"a", "d", "b"}, []string{results[0].ItemID, results[1].ItemID, results[2].ItemID})
}

func TestMatch_ProviderFailureDegradesSemantic(t *testing.T) {
	cfg := config.DefaultConfig().Match
	m := New(failingEmbedder{}, cfg, nil, nil)

	results := m.Match(context.Background(), "red cotton shirt", []domain.CatalogItem{redShirt, blueBoots}, nil, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ItemID)
	assert.Zero(t, results[0].Signals.Semantic)
	assert.InDelta(t, 0.3+0.2+0.1/27.0, results[0].CompositeScore, 1e-9)
}

func TestMatch_ImagePath(t *testing.T) {
	m := newTestMatcher(t, nil)

	signal := &domain.ImageSignal{
		Vector: []float32{1, 0},
		ItemFeatures: map[string][]float32{
			"p2": {1, 0.2}, // near
			"p3": {1, 1},   // cos 0.707
			"p1": {0, 1},   // orthogonal
		},
	}
	results := m.Match(context.Background(), "red cotton shirt",
		[]domain.CatalogItem{redShirt, blueBoots, floralDress}, signal, 0)

	require.Len(t, results, 3)
	assert.Equal(t, "p2", results[0].ItemID)
	assert.True(t, results[0].VisualMatch)
	assert.Contains(t, results[0].MatchReason, "Visual similarity")
	assert.Equal(t, "p3", results[1].ItemID)
	assert.True(t, results[1].VisualMatch)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)

	// orthogonal feature falls back to the composite score
	assert.Equal(t, "p1", results[2].ItemID)
	assert.False(t, results[2].VisualMatch)
}

func TestMatch_VisualThresholdIsExclusive(t *testing.T) {
	query := []float32{1, 0}
	feature := []float32{0.6, 0.8}
	sim, err := similarity.Cosine(query, feature)
	require.NoError(t, err)

	signal := &domain.ImageSignal{Vector: query, ItemFeatures: map[string][]float32{"p3": feature}}
	items := []domain.CatalogItem{floralDress}

	at := newTestMatcher(t, func(c *config.MatchConfig) { c.VisualThreshold = sim })
	results := at.Match(context.Background(), "floral dress", items, signal, 0)
	require.Len(t, results, 1)
	assert.False(t, results[0].VisualMatch)

	below := newTestMatcher(t, func(c *config.MatchConfig) { c.VisualThreshold = sim - 1e-5 })
	results = below.Match(context.Background(), "floral dress", items, signal, 0)
	require.Len(t, results, 1)
	assert.True(t, results[0].VisualMatch)
}

func TestMatch_ImagePathCaps(t *testing.T) {
	m := newTestMatcher(t, nil)

	features := map[string][]float32{}
	var items []domain.CatalogItem
	for _, id := range []string{"v1", "v2", "v3", "v4", "v5"} {
		items = append(items, domain.CatalogItem{ID: id, Name: "Shirt " + id, Category: "shirt"})
		features[id] = []float32{1, 0}
	}
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		items = append(items, domain.CatalogItem{ID: id, Name: "Red shirt " + id, Category: "shirt"})
	}

	results := m.Match(context.Background(), "red shirt", items,
		&domain.ImageSignal{Vector: []float32{1, 0}, ItemFeatures: features}, 0)

	require.Len(t, results, 6)
	visual := 0
	seen := map[string]bool{}
	for _, r := range results {
		assert.False(t, seen[r.ItemID], "duplicate %s", r.ItemID)
		seen[r.ItemID] = true
		if r.VisualMatch {
			visual++
		}
	}
	assert.Equal(t, 3, visual)
	assert.True(t, results[0].VisualMatch)
	assert.False(t, results[5].VisualMatch)
}
