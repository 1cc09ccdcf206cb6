package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/payments"
	"github.com/velour-beauty/api/internal/repositories"
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist or belongs to another user.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the requested lifecycle transition is not allowed.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// statusGraph encodes the allowed lifecycle transitions. Terminal states
// have no outgoing edges.
var statusGraph = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPendingPayment: {domain.OrderStatusPending, domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing:      {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:        {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:      {domain.OrderStatusRefunded},
	domain.OrderStatusCancelled:      {domain.OrderStatusRefunded},
	domain.OrderStatusRefunded:       {},
}

var cancellableStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:        {},
	domain.OrderStatusPendingPayment: {},
	domain.OrderStatusPreparing:      {},
}

// TransitionStatusCommand moves an order to a new lifecycle state.
type TransitionStatusCommand struct {
	OrderID string
	Status  OrderStatus
}

// CancelOrderCommand cancels an order on behalf of its owner.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// OrderServiceDeps wires the repositories and payment gateway for order flows.
type OrderServiceDeps struct {
	Orders  repositories.OrderRepository
	Gateway payments.Gateway
	Clock   func() time.Time
	Logger  func(context.Context, string, map[string]any)
}

type orderService struct {
	orders  repositories.OrderRepository
	gateway payments.Gateway
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:  deps.Orders,
		gateway: deps.Gateway,
		now:     func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// ListMyOrders returns the user's orders, newest first unless asked otherwise.
func (s *orderService) ListMyOrders(ctx context.Context, userID string, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = domain.SortDesc
	}

	page, err := s.orders.ListByUser(ctx, uid, repositories.OrderListFilter{
		Pagination: filter.Pagination,
		Statuses:   filter.Statuses,
		SortOrder:  sortOrder,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	return page, nil
}

// GetOrder returns a single order after checking ownership. Orders owned by
// other users read as not found rather than forbidden.
func (s *orderService) GetOrder(ctx context.Context, orderID, userID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	uid := strings.TrimSpace(userID)
	if id == "" || uid == "" {
		return Order{}, fmt.Errorf("%w: order id and user id are required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if order.UserID != uid {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, id)
	}
	return order, nil
}

// TransitionStatus applies a lifecycle transition, stamping the timestamp
// matching the target status. Invalid edges in the graph are conflicts.
func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if _, known := statusGraph[target]; !known {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if !transitionAllowed(order.Status, target) {
		return Order{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrOrderConflict, order.Status, target)
	}

	now := s.now()
	update := repositories.OrderStatusUpdate{}
	switch target {
	case domain.OrderStatusPending:
		update.PlacedAt = &now
	case domain.OrderStatusShipped:
		update.ShippedAt = &now
	case domain.OrderStatusDelivered:
		update.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		update.CancelledAt = &now
	case domain.OrderStatusRefunded:
		update.RefundedAt = &now
	}

	updated, err := s.orders.UpdateStatus(ctx, id, target, update)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.status.transitioned", map[string]any{
		"orderId": updated.ID,
		"from":    string(order.Status),
		"to":      string(target),
	})
	return updated, nil
}

// Cancel cancels the order on behalf of its owner. Captured card payments
// are refunded through the gateway; refund failures are logged for manual
// follow-up and never block the cancellation.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}

	order, err := s.GetOrder(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return Order{}, err
	}
	if _, ok := cancellableStatuses[order.Status]; !ok {
		return Order{}, fmt.Errorf("%w: order in status %s cannot be cancelled", ErrOrderConflict, order.Status)
	}

	now := s.now()
	update := repositories.OrderStatusUpdate{CancelledAt: &now}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		update.CancelReason = &reason
	}

	updated, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, update)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.refundCapturedPayment(ctx, updated)

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": updated.ID,
		"userId":  updated.UserID,
	})
	return updated, nil
}

func (s *orderService) refundCapturedPayment(ctx context.Context, order Order) {
	if s.gateway == nil || order.PaymentRef == nil {
		return
	}
	if order.PaymentRef.Status != string(payments.StatusSucceeded) {
		return
	}

	amount := order.PaymentRef.Amount
	_, err := s.gateway.Refund(ctx, payments.RefundRequest{
		IntentID: order.PaymentRef.IntentID,
		Amount:   &amount,
		Reason:   "requested_by_customer",
		Method:   order.Payment,
	})
	if err != nil {
		s.logger(ctx, "order.refund.failed", map[string]any{
			"orderId":       order.ID,
			"paymentIntent": order.PaymentRef.IntentID,
			"error":         err.Error(),
		})
	}
}

func (s *orderService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

var _ OrderService = (*orderService)(nil)
