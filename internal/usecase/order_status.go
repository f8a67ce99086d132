package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shoprag/config"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

const (
	day        = 24 * time.Hour
	dateLayout = "January 02, 2006"
)

// OrderTracker derives the customer-facing status of an order from its
// placement and shipping timestamps.
type OrderTracker struct {
	orders  port.OrderStore
	cfg     config.OrderConfig
	loc     *time.Location
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrderTracker creates a tracker. orders may be nil when only Derive is used.
func NewOrderTracker(orders port.OrderStore, cfg config.OrderConfig, log *zap.Logger, m *metrics.Metrics) *OrderTracker {
	if cfg.DeliveryDays <= 0 {
		cfg.DeliveryDays = 5
	}
	if cfg.ShipWindowDays < 2 {
		cfg.ShipWindowDays = 3
	}
	if cfg.InferredDeliveryDays <= 0 {
		cfg.InferredDeliveryDays = 7
	}
	if cfg.TrackingPrefix == "" {
		cfg.TrackingPrefix = "TRK"
	}
	return &OrderTracker{
		orders:  orders,
		cfg:     cfg,
		loc:     cfg.Location(),
		log:     logger.OrNop(log),
		metrics: m,
		now:     time.Now,
	}
}

// Derive maps order facts to a status. Rules are checked in order and
// the first match wins:
//
//	shipped, >= DeliveryDays ago       Delivered
//	shipped, >= 1 day ago              In Transit
//	shipped, < 1 day ago               Shipped
//	not shipped, placed today          Order Confirmed
//	not shipped, placed 1 day ago      Processing
//	not shipped, <= ShipWindowDays     Ready to Ship
//	not shipped, older                 Shipped (inferred)
//
// A shipping time before the placement time is ignored and reported as
// an anomaly.
func (t *OrderTracker) Derive(facts domain.OrderStatusFacts) domain.OrderStatusResult {
	now := facts.Now
	if now.IsZero() {
		now = t.now()
	}

	var result domain.OrderStatusResult
	result.TrackingNumber, result.HasTracking = t.trackingNumber(facts)

	shipped := facts.ShippedAt
	if shipped != nil && shipped.Before(facts.OrderPlacedAt) {
		result.Anomaly = domain.ErrInvalidTimestamp.Error()
		t.log.Warn("shipping time precedes order placement",
			zap.String("order_id", facts.OrderID),
			zap.Time("placed_at", facts.OrderPlacedAt),
			zap.Time("shipped_at", *shipped),
		)
		shipped = nil
	}

	if shipped != nil {
		t.deriveShipped(&result, *shipped, now)
	} else {
		t.derivePending(&result, facts.OrderPlacedAt, now)
	}

	t.metrics.OrderStatus(string(result.Status))
	return result
}

func (t *OrderTracker) deriveShipped(r *domain.OrderStatusResult, shipped, now time.Time) {
	days := wholeDays(now.Sub(shipped))
	delivery := shipped.Add(time.Duration(t.cfg.DeliveryDays) * day)

	switch {
	case days >= t.cfg.DeliveryDays:
		r.Status = domain.StatusDelivered
		r.Message = fmt.Sprintf("Your order was delivered on %s.", t.format(delivery))
		r.EstimatedDate = &delivery
		r.EstimateKind = domain.EstimateDelivered
	case days >= 1:
		r.Status = domain.StatusInTransit
		r.Message = fmt.Sprintf("Your order is on its way! Expected delivery: %s", t.format(delivery))
		r.EstimatedDate = &delivery
		r.EstimateKind = domain.EstimateDelivery
	default:
		r.Status = domain.StatusShipped
		r.Message = fmt.Sprintf("Your order shipped on %s and is being processed for delivery.", t.format(shipped))
	}
}

func (t *OrderTracker) derivePending(r *domain.OrderStatusResult, placed, now time.Time) {
	switch days := wholeDays(now.Sub(placed)); {
	case days == 0:
		r.Status = domain.StatusOrderConfirmed
		r.Message = "Your order has been confirmed and payment processed. We're preparing your items."
	case days == 1:
		r.Status = domain.StatusProcessing
		r.Message = "Your order is being processed and will be shipped within 24 hours."
	case days <= t.cfg.ShipWindowDays:
		shipping := placed.Add(time.Duration(t.cfg.ShipWindowDays) * day)
		r.Status = domain.StatusReadyToShip
		r.Message = "Your order is packed and ready to ship. You'll receive tracking info soon."
		r.EstimatedDate = &shipping
		r.EstimateKind = domain.EstimateShipping
	default:
		delivery := placed.Add(time.Duration(t.cfg.InferredDeliveryDays) * day)
		r.Status = domain.StatusShipped
		r.Message = "Your order has been shipped. Delivery expected within 3-5 business days."
		r.EstimatedDate = &delivery
		r.EstimateKind = domain.EstimateDelivery
		r.Inferred = true
	}
}

// trackingNumber passes a stored number through or builds the unverified
// placeholder prefix + order id + placement MMDD.
func (t *OrderTracker) trackingNumber(facts domain.OrderStatusFacts) (string, bool) {
	if tn := strings.TrimSpace(facts.TrackingNumber); tn != "" {
		return tn, true
	}
	id := strings.TrimSpace(strings.ReplaceAll(facts.OrderID, "#", ""))
	return t.cfg.TrackingPrefix + id + facts.OrderPlacedAt.In(t.loc).Format("0102"), false
}

func (t *OrderTracker) format(ts time.Time) string {
	return ts.In(t.loc).Format(dateLayout)
}

// wholeDays floors d to whole days; negative durations count as zero.
func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / day)
}

// OrderLookup is a stored order together with its derived status.
type OrderLookup struct {
	Order  *domain.OrderRecord      `json:"order"`
	Status domain.OrderStatusResult `json:"status"`
}

// Lookup resolves ref as a tracking number or an order id and derives the
// order's status. Unknown references return domain.ErrNotFound.
func (t *OrderTracker) Lookup(ctx context.Context, ref string) (*OrderLookup, error) {
	if t.orders == nil {
		return nil, fmt.Errorf("order lookup: no order store configured")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrNotFound
	}

	var (
		rec *domain.OrderRecord
		err error
	)
	if strings.HasPrefix(strings.ToUpper(ref), t.cfg.TrackingPrefix) {
		rec, err = t.orders.GetOrderByTracking(ctx, strings.ToUpper(ref))
	} else {
		rec, err = t.orders.GetOrder(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	status := t.Derive(domain.OrderStatusFacts{
		OrderID:        rec.OrderID,
		OrderPlacedAt:  rec.PlacedAt,
		ShippedAt:      rec.ShippedAt,
		TrackingNumber: rec.TrackingNumber,
	})
	return &OrderLookup{Order: rec, Status: status}, nil
}
