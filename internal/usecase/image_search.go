package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shoprag/config"
	"shoprag/internal/adapter/caption"
	"shoprag/internal/adapter/matcher"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

const captionCacheSize = 1024

// ImageSearch finds catalog items resembling an uploaded image. Images
// are compared through their captions: the upload and every stored
// primary image are captioned, the captions embedded, and the vectors
// handed to the matcher as the image signal.
type ImageSearch struct {
	captioner port.Captioner
	embedder  port.Embedder
	catalog   port.CatalogStore
	matcher   *matcher.Matcher
	fallback  string
	workers   int
	captions  *lru.Cache[string, string]
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// ImageSearchResult is the outcome of one image search.
type ImageSearchResult struct {
	Description      string               `json:"description"`
	DetectedCategory string               `json:"detected_category"`
	Matches          []domain.MatchResult `json:"matches"`
}

// NewImageSearch creates an image search. embedder may be nil, in which
// case only the text signals of the caption are used.
func NewImageSearch(
	captioner port.Captioner,
	embedder port.Embedder,
	catalog port.CatalogStore,
	m *matcher.Matcher,
	matchCfg config.MatchConfig,
	captionCfg config.CaptionConfig,
	log *zap.Logger,
	mt *metrics.Metrics,
) *ImageSearch {
	captions, _ := lru.New[string, string](captionCacheSize)
	workers := matchCfg.FeatureWorkers
	if workers <= 0 {
		workers = 1
	}
	fallback := captionCfg.Fallback
	if fallback == "" {
		fallback = "clothing item"
	}
	return &ImageSearch{
		captioner: captioner,
		embedder:  embedder,
		catalog:   catalog,
		matcher:   m,
		fallback:  fallback,
		workers:   workers,
		captions:  captions,
		log:       logger.OrNop(log),
		metrics:   mt,
	}
}

// Search captions image and ranks the catalog against it. Provider
// failures degrade the search; only catalog errors are returned.
func (s *ImageSearch) Search(ctx context.Context, image []byte, limit int) (*ImageSearchResult, error) {
	description, captioned := s.describe(ctx, image)

	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	// the fallback text says nothing about the upload, so it gets no image signal
	var signal *domain.ImageSignal
	if captioned {
		signal = s.signal(ctx, description, items)
	}

	return &ImageSearchResult{
		Description:      description,
		DetectedCategory: s.matcher.DetectCategory(description),
		Matches:          s.matcher.Match(ctx, description, items, signal, limit),
	}, nil
}

// describe captions the upload, falling back to a generic description.
// The flag reports whether the caption came from the captioner.
func (s *ImageSearch) describe(ctx context.Context, image []byte) (string, bool) {
	if s.captioner == nil || len(image) == 0 {
		return s.fallback, false
	}
	desc, err := s.caption(ctx, image)
	if err != nil || strings.TrimSpace(desc) == "" {
		s.metrics.ProviderFailure("caption")
		s.log.Warn("image caption unavailable, using fallback", zap.Error(err), zap.String("fallback", s.fallback))
		return s.fallback, false
	}
	return desc, true
}

func (s *ImageSearch) caption(ctx context.Context, image []byte) (string, error) {
	key := caption.Key(image)
	if c, ok := s.captions.Get(key); ok {
		s.metrics.CacheHit("caption")
		return c, nil
	}
	s.metrics.CacheMiss("caption")

	c, err := s.captioner.Caption(ctx, image)
	if err != nil {
		return "", err
	}
	s.captions.Add(key, c)
	return c, nil
}

// signal builds the image signal, or nil when the upload cannot be embedded.
func (s *ImageSearch) signal(ctx context.Context, description string, items []domain.CatalogItem) *domain.ImageSignal {
	if s.embedder == nil {
		return nil
	}

	itemCaptions := s.itemCaptions(ctx, items)

	ids := make([]string, 0, len(itemCaptions))
	texts := make([]string, 0, len(itemCaptions)+1)
	texts = append(texts, description)
	for _, item := range items {
		if c, ok := itemCaptions[item.ID]; ok {
			ids = append(ids, item.ID)
			texts = append(texts, c)
		}
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		s.metrics.ProviderFailure("image_signal")
		s.log.Warn("image signal unavailable, matching on text", zap.Error(err))
		return nil
	}

	signal := &domain.ImageSignal{
		Vector:       vecs[0],
		ItemFeatures: make(map[string][]float32, len(ids)),
	}
	for i, id := range ids {
		signal.ItemFeatures[id] = vecs[i+1]
	}
	return signal
}

// itemCaptions captions the primary image of every item that has one.
// Items whose image cannot be captioned are left out.
func (s *ImageSearch) itemCaptions(ctx context.Context, items []domain.CatalogItem) map[string]string {
	out := make(map[string]string)
	if s.captioner == nil || len(items) == 0 {
		return out
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	images, err := s.catalog.PrimaryImages(ctx, ids)
	if err != nil {
		s.log.Warn("failed to load product images", zap.Error(err))
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for id, img := range images {
		g.Go(func() error {
			c, err := s.caption(gctx, img)
			if err != nil || strings.TrimSpace(c) == "" {
				s.log.Debug("skipping product image", zap.String("item", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[id] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}
