package usecase

import (
	"regexp"
	"strings"

	"shoprag/internal/adapter/analyzer"
	"shoprag/internal/domain"
)

var (
	trackingPattern = regexp.MustCompile(`\bTRK\d{6,}\b`)
	hashOrderID     = regexp.MustCompile(`#\s*(\d+)`)
	bareNumber      = regexp.MustCompile(`\b(\d+)\b`)
)

const (
	patternConfidence  = 0.9
	fallbackConfidence = 0.3
)

// intentKeywords are checked in order; the first group with a hit wins.
var intentKeywords = []struct {
	kind  domain.IntentKind
	terms []string
}{
	{domain.IntentOrderStatus, []string{"track", "tracking", "order", "shipping", "delivery"}},
	{domain.IntentProductSearch, []string{"product", "search", "find", "looking for"}},
	{domain.IntentReturnPolicy, []string{"return", "refund", "exchange"}},
	{domain.IntentShoppingCart, []string{"cart", "checkout", "payment"}},
	{domain.IntentCustomerSupport, []string{"contact", "support", "help"}},
}

// ClassifyIntent is the deterministic intent classifier. Tracking numbers
// and order ids found by pattern win over keyword groups; an order id is
// only extracted when the message mentions an order or tracking.
func ClassifyIntent(message string) domain.Intent {
	if m := trackingPattern.FindString(strings.ToUpper(message)); m != "" {
		return domain.Intent{Kind: domain.IntentOrderStatus, TrackingNumber: m, Confidence: patternConfidence}
	}

	words := analyzer.Words(message)
	folded := make([]string, len(words))
	for i, w := range words {
		folded[i] = analyzer.FoldPlural(w)
	}
	mentions := func(term string) bool {
		p := analyzer.Words(term)
		return analyzer.ContainsPhrase(words, p) || analyzer.ContainsPhrase(folded, p)
	}

	// order ids are only taken from messages that talk about an order
	tracking := mentions("track") || mentions("tracking")
	if tracking || mentions("order") {
		if m := hashOrderID.FindStringSubmatch(message); m != nil {
			return domain.Intent{Kind: domain.IntentOrderStatus, OrderID: m[1], Confidence: patternConfidence}
		}
	}
	if tracking {
		if m := bareNumber.FindStringSubmatch(message); m != nil {
			return domain.Intent{Kind: domain.IntentOrderStatus, OrderID: m[1], Confidence: patternConfidence}
		}
	}

	for _, group := range intentKeywords {
		for _, term := range group.terms {
			if mentions(term) {
				return domain.Intent{Kind: group.kind, Confidence: fallbackConfidence}
			}
		}
	}
	return domain.Intent{Kind: domain.IntentGeneralChat, Confidence: fallbackConfidence}
}
