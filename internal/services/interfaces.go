package services

import (
	"context"
	"errors"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination     = domain.Pagination
	SortOrder      = domain.SortOrder
	Cart           = domain.Cart
	CartItem       = domain.CartItem
	Quote          = domain.Quote
	ShippingInfo   = domain.ShippingInfo
	Order          = domain.Order
	OrderLineItem  = domain.OrderLineItem
	OrderStatus    = domain.OrderStatus
	OrderPayment   = domain.OrderPayment
	DeliveryMethod = domain.DeliveryMethod
	PaymentMethod  = domain.PaymentMethod
)

// Pricer calculates the authoritative charge breakdown for a set of cart items.
type Pricer interface {
	Price(ctx context.Context, cmd PriceCommand) (Quote, error)
}

// CartService manages mutable cart state and keeps the persisted estimate current.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
	Estimate(ctx context.Context, cmd EstimateCommand) (Quote, error)
}

// CheckoutService validates the checkout payload and turns a cart into an order.
type CheckoutService interface {
	SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (Order, error)
}

// OrderService encapsulates order reads and lifecycle transitions.
type OrderService interface {
	ListMyOrders(ctx context.Context, userID string, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, orderID, userID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// SystemService surfaces dependency health for liveness and readiness endpoints.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter narrows and pages user order listings.
type OrderListFilter struct {
	Pagination Pagination
	Statuses   []OrderStatus
	SortOrder  SortOrder
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
