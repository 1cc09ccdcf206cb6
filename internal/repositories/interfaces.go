package repositories

import (
	"context"
	"time"

	domain "github.com/velour-beauty/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository owns cart header + items persistence with optimistic locking guarantees.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// OrderListFilter narrows and pages order listings.
type OrderListFilter struct {
	Pagination domain.Pagination
	Statuses   []domain.OrderStatus
	SortOrder  domain.SortOrder
}

// OrderStatusUpdate carries optional fields mutated alongside a status transition.
type OrderStatusUpdate struct {
	PlacedAt     *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time
	CancelReason *string
	Payment      *domain.OrderPayment
}

// OrderRepository persists orders and their lifecycle transitions.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, update OrderStatusUpdate) (domain.Order, error)
}

// CounterRepository issues monotonically increasing values for human-readable order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository evaluates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
