package domain

import "time"

// SourceKind identifies the kind of a knowledge-source record.
type SourceKind string

const (
	SourcePage     SourceKind = "page"
	SourceFeature  SourceKind = "feature"
	SourcePolicy   SourceKind = "policy"
	SourceCategory SourceKind = "category"
	SourceProduct  SourceKind = "product"
)

// SourceRecord is one typed record from the knowledge source feed.
// Key identifies the record within its kind (page path, policy type,
// feature index, category name); Item is set for product records.
type SourceRecord struct {
	Kind  SourceKind   `yaml:"kind" json:"kind"`
	Key   string       `yaml:"key" json:"key"`
	Title string       `yaml:"title,omitempty" json:"title,omitempty"`
	Body  string       `yaml:"body" json:"body"`
	Item  *CatalogItem `yaml:"-" json:"item,omitempty"`
}

// KnowledgeDocument is a rendered, embedded entry of the knowledge index.
// ID is stable across rebuilds for the same logical entity.
type KnowledgeDocument struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ScoredDocument is a knowledge query hit.
type ScoredDocument struct {
	Document   KnowledgeDocument `json:"document"`
	Distance   float64           `json:"distance"`
	Similarity float64           `json:"similarity"`
}

// CatalogItem is the read-only view of a product the matcher ranks.
type CatalogItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	Ranking       float64 `json:"ranking"`
}

// SignalBreakdown holds the four normalized matcher signals.
type SignalBreakdown struct {
	Semantic   float64 `json:"semantic"`
	Keyword    float64 `json:"keyword"`
	Category   float64 `json:"category"`
	VisualText float64 `json:"visual_text"`
}

// MatchResult is one ranked catalog item with match provenance.
type MatchResult struct {
	ItemID           string          `json:"item_id"`
	Item             CatalogItem     `json:"item"`
	CompositeScore   float64         `json:"composite_score"`
	Signals          SignalBreakdown `json:"signal_breakdown"`
	Similarity       float64         `json:"similarity"`
	VisualMatch      bool            `json:"visual_match"`
	MatchReason      string          `json:"match_reason"`
	DetectedCategory string          `json:"detected_category"`
	Keywords         []string        `json:"keywords,omitempty"`
}

// ImageSignal carries the uploaded image's feature vector and the stored
// feature vectors of candidates that have a comparable image.
type ImageSignal struct {
	Vector       []float32
	ItemFeatures map[string][]float32
}

// OrderStatus is the derived lifecycle label of an order.
type OrderStatus string

const (
	StatusOrderConfirmed OrderStatus = "Order Confirmed"
	StatusProcessing     OrderStatus = "Processing"
	StatusReadyToShip    OrderStatus = "Ready to Ship"
	StatusShipped        OrderStatus = "Shipped"
	StatusInTransit      OrderStatus = "In Transit"
	StatusDelivered      OrderStatus = "Delivered"
)

// EstimateKind tells what EstimatedDate refers to.
type EstimateKind string

const (
	EstimateNone      EstimateKind = ""
	EstimateDelivery  EstimateKind = "delivery"
	EstimateShipping  EstimateKind = "shipping"
	EstimateDelivered EstimateKind = "delivered"
)

// OrderStatusFacts is the input of status derivation.
type OrderStatusFacts struct {
	OrderID        string
	OrderPlacedAt  time.Time
	ShippedAt      *time.Time
	TrackingNumber string
	Now            time.Time
}

// OrderStatusResult is the derived status of an order.
type OrderStatusResult struct {
	Status         OrderStatus  `json:"status"`
	Message        string       `json:"message"`
	EstimatedDate  *time.Time   `json:"estimated_date,omitempty"`
	EstimateKind   EstimateKind `json:"estimate_kind,omitempty"`
	TrackingNumber string       `json:"tracking_number"`
	HasTracking    bool         `json:"has_tracking"`
	Inferred       bool         `json:"inferred,omitempty"`
	Anomaly        string       `json:"anomaly,omitempty"`
}

// OrderRecord is the order row the order store returns.
type OrderRecord struct {
	OrderID        string
	CustomerEmail  string
	PlacedAt       time.Time
	ShippedAt      *time.Time
	TrackingNumber string
}

// IntentKind is the coarse classification of a customer message.
type IntentKind string

const (
	IntentOrderStatus     IntentKind = "order_status"
	IntentProductSearch   IntentKind = "product_search"
	IntentReturnPolicy    IntentKind = "return_policy"
	IntentShoppingCart    IntentKind = "shopping_cart"
	IntentCustomerSupport IntentKind = "customer_support"
	IntentGeneralChat     IntentKind = "general_chat"
)

// Intent is the result of message classification.
type Intent struct {
	Kind           IntentKind `json:"intent"`
	OrderID        string     `json:"order_id,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	Confidence     float64    `json:"confidence"`
}

// Snippet is a packed knowledge snippet for prompt construction.
type Snippet struct {
	ID   string `json:"id"`
	Why  string `json:"why"`
	Text string `json:"text"`
}

// PackedContext is the budgeted set of snippets handed to the response generator.
type PackedContext struct {
	Query        string    `json:"query"`
	BudgetTokens int       `json:"budget_tokens"`
	UsedTokens   int       `json:"used_tokens"`
	Snippets     []Snippet `json:"snippets"`
}

// AssembledContext is everything the facade gathers for one message.
type AssembledContext struct {
	Message   string             `json:"message"`
	Intent    Intent             `json:"intent"`
	Knowledge PackedContext      `json:"knowledge"`
	Products  []MatchResult      `json:"products,omitempty"`
	Order     *OrderStatusResult `json:"order,omitempty"`
}
