package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// DeliveryMethod enumerates the shipping tiers offered at checkout.
type DeliveryMethod string

const (
	// DeliveryStandard is the default paid tier (5-7 business days).
	DeliveryStandard DeliveryMethod = "standard"
	// DeliveryExpress is the expedited tier (2-3 business days).
	DeliveryExpress DeliveryMethod = "express"
	// DeliveryOvernight is the next-day tier.
	DeliveryOvernight DeliveryMethod = "overnight"
	// DeliveryFree is the complimentary tier, honored only above the
	// free-shipping subtotal threshold.
	DeliveryFree DeliveryMethod = "free"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	// PaymentCard is a credit or debit card charged through the PSP.
	PaymentCard PaymentMethod = "card"
	// PaymentPayPal is a PayPal wallet payment.
	PaymentPayPal PaymentMethod = "paypal"
	// PaymentCOD is cash on delivery; carries a fixed surcharge and
	// subtotal eligibility bounds.
	PaymentCOD PaymentMethod = "cod"
)

// Cart aggregates the mutable shopping cart state for a user. The cart
// document is keyed by user ID, so ID and UserID are interchangeable.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	Estimate  *Quote
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart. UnitPrice is a
// snapshot taken when the item was added, in minor currency units.
type CartItem struct {
	ID        string
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	Currency  string
	ImagePath string
	Metadata  map[string]any
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// Quote is the ephemeral charge breakdown computed for a cart before order
// submission. It is recomputed on every pricing request; the computation
// performed at order creation is the authoritative one.
type Quote struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Discount int64
	CODFee   int64
	Total    int64
}

// ShippingInfo is the contact and destination snapshot collected at checkout.
type ShippingInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	State     string
	Zip       string
	Country   string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been accepted and awaits preparation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPendingPayment indicates a cash-on-delivery order awaiting collection.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	// OrderStatusPreparing indicates the order is being picked and packed.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipment.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the order was refunded after payment.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Order captures an order as created at checkout. Immutable from the
// client's perspective after creation except for status transitions.
type Order struct {
	ID           string
	OrderNumber  string
	UserID       string
	Status       OrderStatus
	Currency     string
	Items        []OrderLineItem
	Totals       Quote
	ShippingInfo ShippingInfo
	Delivery     DeliveryMethod
	Payment      PaymentMethod
	PaymentRef   *OrderPayment
	GiftMessage  string
	OrderNotes   string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PlacedAt     *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time
	CancelReason *string
}

// OrderLineItem mirrors cart items at the time of checkout.
type OrderLineItem struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	Total     int64
	ImagePath string
}

// OrderPayment records the gateway authorization attached to an order.
type OrderPayment struct {
	Provider  string
	IntentID  string
	Status    string
	Amount    int64
	Currency  string
	CreatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck records the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status     string
	Error      string
	Latency    time.Duration
	ObservedAt time.Time
}

// SystemHealthReport aggregates dependency probes for readiness endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
