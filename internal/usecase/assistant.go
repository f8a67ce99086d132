package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/adapter/matcher"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/port"
)

// Assistant gathers everything a response generator needs for one
// customer message. None of its methods fail on provider errors; they
// log and fall back to empty results instead.
type Assistant struct {
	knowledge port.KnowledgeRetriever
	matcher   *matcher.Matcher
	catalog   port.CatalogStore
	orders    *OrderTracker
	packer    *SnippetPacker
	contextK  int
	budget    int
	log       *zap.Logger
}

// NewAssistant creates the facade. A nil catalog disables product
// matching in Assemble; a tracker without an order store disables order lookups.
func NewAssistant(
	knowledge port.KnowledgeRetriever,
	m *matcher.Matcher,
	catalog port.CatalogStore,
	orders *OrderTracker,
	packer *SnippetPacker,
	cfg *config.Config,
	log *zap.Logger,
) *Assistant {
	if packer == nil {
		packer = NewSnippetPacker(nil)
	}
	if orders == nil {
		orders = NewOrderTracker(nil, cfg.Order, log, nil)
	}
	contextK := cfg.Index.ContextK
	if contextK <= 0 {
		contextK = 3
	}
	return &Assistant{
		knowledge: knowledge,
		matcher:   m,
		catalog:   catalog,
		orders:    orders,
		packer:    packer,
		contextK:  contextK,
		budget:    cfg.Pack.TokenBudget,
		log:       logger.OrNop(log),
	}
}

// QueryKnowledge returns the top-k knowledge documents for text, or none
// when the index cannot be searched.
func (a *Assistant) QueryKnowledge(ctx context.Context, text string, k int) []domain.ScoredDocument {
	docs, err := a.knowledge.Query(ctx, text, k)
	if err != nil {
		a.log.Warn("knowledge query degraded to empty result", zap.Error(err))
		return []domain.ScoredDocument{}
	}
	return docs
}

// MatchProducts ranks candidates against description.
func (a *Assistant) MatchProducts(ctx context.Context, description string, candidates []domain.CatalogItem, signal *domain.ImageSignal, limit int) []domain.MatchResult {
	return a.matcher.Match(ctx, description, candidates, signal, limit)
}

// DeriveOrderStatus maps order facts to a status.
func (a *Assistant) DeriveOrderStatus(facts domain.OrderStatusFacts) domain.OrderStatusResult {
	return a.orders.Derive(facts)
}

// Assemble classifies message and collects the knowledge snippets, order
// status and product matches that apply to it.
func (a *Assistant) Assemble(ctx context.Context, message string) domain.AssembledContext {
	intent := ClassifyIntent(message)
	out := domain.AssembledContext{
		Message: message,
		Intent:  intent,
	}

	docs := a.QueryKnowledge(ctx, message, a.contextK)
	out.Knowledge = a.packer.Pack(message, docs, a.budget)

	if a.orders.orders != nil {
		if ref := firstNonEmpty(intent.TrackingNumber, intent.OrderID); ref != "" {
			lookup, err := a.orders.Lookup(ctx, ref)
			switch {
			case err == nil:
				out.Order = &lookup.Status
			case errors.Is(err, domain.ErrNotFound):
				a.log.Info("order reference not found", zap.String("ref", ref))
			default:
				a.log.Warn("order lookup failed", zap.String("ref", ref), zap.Error(err))
			}
		}
	}

	if intent.Kind == domain.IntentProductSearch && a.catalog != nil {
		items, err := a.catalog.ListItems(ctx)
		if err != nil {
			a.log.Warn("catalog unavailable, skipping product matches", zap.Error(err))
		} else {
			out.Products = a.MatchProducts(ctx, message, items, nil, 0)
		}
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
