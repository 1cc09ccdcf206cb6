package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/payments"
	"github.com/velour-beauty/api/internal/platform/events"
	"github.com/velour-beauty/api/internal/repositories"
)

type stubOrderRepo struct {
	inserted  []domain.Order
	insertErr error
	orders    map[string]domain.Order
	updated   map[string]domain.OrderStatus
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[string]domain.Order{}, updated: map[string]domain.OrderStatus{}}
}

func (r *stubOrderRepo) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	if r.insertErr != nil {
		return domain.Order{}, r.insertErr
	}
	r.inserted = append(r.inserted, order)
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true}
	}
	return order, nil
}

func (r *stubOrderRepo) ListByUser(_ context.Context, userID string, _ repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var page domain.CursorPage[domain.Order]
	for _, order := range r.orders {
		if order.UserID == userID {
			page.Items = append(page.Items, order)
		}
	}
	return page, nil
}

func (r *stubOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true}
	}
	order.Status = status
	if update.CancelledAt != nil {
		order.CancelledAt = update.CancelledAt
	}
	if update.CancelReason != nil {
		order.CancelReason = update.CancelReason
	}
	r.orders[orderID] = order
	r.updated[orderID] = status
	return order, nil
}

type stubCounterRepo struct {
	value int64
	err   error
}

func (r *stubCounterRepo) Next(_ context.Context, _ string, step int64) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if step <= 0 {
		step = 1
	}
	r.value += step
	return r.value, nil
}

type stubPaymentGateway struct {
	requests []payments.AuthorizationRequest
	status   payments.Status
	err      error
}

func (g *stubPaymentGateway) Authorize(_ context.Context, req payments.AuthorizationRequest) (payments.Authorization, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payments.Authorization{}, g.err
	}
	status := g.status
	if status == "" {
		status = payments.StatusSucceeded
	}
	return payments.Authorization{
		Provider: "stub",
		IntentID: "pi_stub",
		Status:   status,
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

func (g *stubPaymentGateway) Refund(_ context.Context, req payments.RefundRequest) (payments.Authorization, error) {
	if g.err != nil {
		return payments.Authorization{}, g.err
	}
	return payments.Authorization{Provider: "stub", IntentID: req.IntentID, Status: payments.StatusRefunded}, nil
}

type stubPublisher struct {
	orderEvents []events.OrderCreatedEvent
	cartEvents  []events.CartClearedEvent
	err         error
}

func (p *stubPublisher) PublishOrderCreated(_ context.Context, event events.OrderCreatedEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.orderEvents = append(p.orderEvents, event)
	return "msg-1", nil
}

func (p *stubPublisher) PublishCartCleared(_ context.Context, event events.CartClearedEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.cartEvents = append(p.cartEvents, event)
	return "msg-2", nil
}

type checkoutFixture struct {
	service   CheckoutService
	carts     *stubCartRepo
	orders    *stubOrderRepo
	gateway   *stubPaymentGateway
	publisher *stubPublisher
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	carts := newStubCartRepo()
	orders := newStubOrderRepo()
	gateway := &stubPaymentGateway{}
	publisher := &stubPublisher{}

	service, err := NewCheckoutService(CheckoutServiceDeps{
		Carts:     carts,
		Orders:    orders,
		Counters:  &stubCounterRepo{},
		Pricer:    newTestEngine(t),
		Gateway:   gateway,
		Publisher: publisher,
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
		NewID:     func() string { return "order-1" },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService returned error: %v", err)
	}
	return &checkoutFixture{service: service, carts: carts, orders: orders, gateway: gateway, publisher: publisher}
}

func (f *checkoutFixture) seedCart(userID string, unitPrice int64, quantity int) {
	f.carts.carts[userID] = domain.Cart{
		ID:       userID,
		UserID:   userID,
		Currency: "USD",
		Items: []domain.CartItem{{
			ID:        "item-1",
			ProductID: "lipstick-01",
			Name:      "Velvet Lipstick",
			UnitPrice: unitPrice,
			Quantity:  quantity,
		}},
	}
}

func validSubmission(payment PaymentMethod) SubmitOrderCommand {
	cmd := SubmitOrderCommand{
		UserID: "user-1",
		Shipping: ShippingInfo{
			FirstName: "Ava",
			LastName:  "Nguyen",
			Email:     "ava@example.com",
			Phone:     "(555) 123-4567",
			Address:   "12 Rose Lane",
			City:      "Portland",
			State:     "OR",
			Zip:       "97201",
			Country:   "US",
		},
		Delivery:      domain.DeliveryStandard,
		Payment:       payment,
		TermsAccepted: true,
	}
	if payment == domain.PaymentCard {
		cmd.Card = &CardDetails{
			Number: "4111 1111 1111 1111",
			Holder: "Ava Nguyen",
			Expiry: "12/27",
			CVV:    "123",
		}
	}
	return cmd
}

func TestSubmitOrderCardSucceeds(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 2500, 2)

	order, err := fixture.service.SubmitOrder(context.Background(), validSubmission(domain.PaymentCard))
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.OrderNumber != "VB-000001" {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if order.Totals.Total != 6295 {
		t.Fatalf("expected total 6295, got %d", order.Totals.Total)
	}
	if order.PaymentRef == nil || order.PaymentRef.IntentID != "pi_stub" {
		t.Fatalf("expected payment reference on the order")
	}
	if order.ShippingInfo.Phone != "5551234567" {
		t.Fatalf("expected normalised phone, got %q", order.ShippingInfo.Phone)
	}

	if len(fixture.gateway.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(fixture.gateway.requests))
	}
	if fixture.gateway.requests[0].Amount != 6295 {
		t.Fatalf("expected gateway amount 6295, got %d", fixture.gateway.requests[0].Amount)
	}

	if len(fixture.carts.carts["user-1"].Items) != 0 {
		t.Fatalf("expected cart cleared after order creation")
	}
	if len(fixture.publisher.orderEvents) != 1 || len(fixture.publisher.cartEvents) != 1 {
		t.Fatalf("expected order.created and cart.cleared events")
	}
	if fixture.publisher.cartEvents[0].OrderID != order.ID {
		t.Fatalf("expected cart.cleared to reference the order")
	}
}

func TestSubmitOrderCODStartsPendingPayment(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 6000, 2)

	cmd := validSubmission(domain.PaymentCOD)
	cmd.Delivery = domain.DeliveryFree

	order, err := fixture.service.SubmitOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if order.Status != domain.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment status, got %q", order.Status)
	}
	if order.Totals.CODFee != 599 || order.Totals.Total != 12359 {
		t.Fatalf("unexpected totals %+v", order.Totals)
	}
}

func TestSubmitOrderValidationGateBlocksWithoutSideEffects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*SubmitOrderCommand)
		message string
	}{
		{name: "missing first name", mutate: func(cmd *SubmitOrderCommand) { cmd.Shipping.FirstName = "  " }, message: "first name"},
		{name: "missing address", mutate: func(cmd *SubmitOrderCommand) { cmd.Shipping.Address = "" }, message: "address"},
		{name: "missing state", mutate: func(cmd *SubmitOrderCommand) { cmd.Shipping.State = "" }, message: "state"},
		{name: "invalid email", mutate: func(cmd *SubmitOrderCommand) { cmd.Shipping.Email = "not-an-email" }, message: "email"},
		{name: "short phone", mutate: func(cmd *SubmitOrderCommand) { cmd.Shipping.Phone = "123" }, message: "phone"},
		{name: "short card number", mutate: func(cmd *SubmitOrderCommand) { cmd.Card.Number = "4111" }, message: "card number"},
		{name: "missing holder", mutate: func(cmd *SubmitOrderCommand) { cmd.Card.Holder = "" }, message: "holder"},
		{name: "bad expiry", mutate: func(cmd *SubmitOrderCommand) { cmd.Card.Expiry = "13/27" }, message: "expiry"},
		{name: "bad cvv", mutate: func(cmd *SubmitOrderCommand) { cmd.Card.CVV = "12" }, message: "cvv"},
		{name: "terms not accepted", mutate: func(cmd *SubmitOrderCommand) { cmd.TermsAccepted = false }, message: "terms"},
		{name: "unknown delivery", mutate: func(cmd *SubmitOrderCommand) { cmd.Delivery = "drone" }, message: "delivery"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fixture := newCheckoutFixture(t)
			fixture.seedCart("user-1", 2500, 2)

			cmd := validSubmission(domain.PaymentCard)
			tc.mutate(&cmd)

			_, err := fixture.service.SubmitOrder(context.Background(), cmd)
			if !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected message mentioning %q, got %q", tc.message, err.Error())
			}

			if len(fixture.gateway.requests) != 0 {
				t.Fatalf("expected no gateway call")
			}
			if len(fixture.orders.inserted) != 0 {
				t.Fatalf("expected no order persisted")
			}
			if len(fixture.carts.carts["user-1"].Items) != 1 {
				t.Fatalf("expected cart untouched")
			}
		})
	}
}

func TestSubmitOrderCODBelowMinimumRejected(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 500, 1)

	_, err := fixture.service.SubmitOrder(context.Background(), validSubmission(domain.PaymentCOD))
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
	if len(fixture.gateway.requests) != 0 || len(fixture.orders.inserted) != 0 {
		t.Fatalf("expected no state change")
	}
	if len(fixture.carts.carts["user-1"].Items) != 1 {
		t.Fatalf("expected cart untouched")
	}
}

func TestSubmitOrderCODAboveMaximumRejected(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 50000, 1)

	_, err := fixture.service.SubmitOrder(context.Background(), validSubmission(domain.PaymentCOD))
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestSubmitOrderEmptyCartBlocked(t *testing.T) {
	fixture := newCheckoutFixture(t)

	_, err := fixture.service.SubmitOrder(context.Background(), validSubmission(domain.PaymentCard))
	if !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
}

func TestSubmitOrderGatewayFailureLeavesCart(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 2500, 2)
	fixture.gateway.err = errors.New("card declined")

	_, err := fixture.service.SubmitOrder(context.Background(), validSubmission(domain.PaymentCard))
	if !errors.Is(err, ErrCheckoutPaymentDeclined) {
		t.Fatalf("expected ErrCheckoutPaymentDeclined, got %v", err)
	}
	if len(fixture.orders.inserted) != 0 {
		t.Fatalf("expected no order persisted")
	}
	if len(fixture.carts.carts["user-1"].Items) != 1 {
		t.Fatalf("expected cart untouched after declined payment")
	}
}

func TestSubmitOrderSanitizesFreeText(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 2500, 2)

	cmd := validSubmission(domain.PaymentCard)
	cmd.GiftMessage = `Happy birthday <script>alert("x")</script> love you`
	cmd.OrderNotes = "<b>leave at door</b>"

	order, err := fixture.service.SubmitOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if strings.Contains(order.GiftMessage, "<script>") {
		t.Fatalf("expected script stripped, got %q", order.GiftMessage)
	}
	if strings.Contains(order.OrderNotes, "<b>") {
		t.Fatalf("expected markup stripped, got %q", order.OrderNotes)
	}
	if !strings.Contains(order.OrderNotes, "leave at door") {
		t.Fatalf("expected text content preserved, got %q", order.OrderNotes)
	}
}

func TestSubmitOrderNormalisesFullWidthDigits(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.seedCart("user-1", 2500, 2)

	cmd := validSubmission(domain.PaymentCard)
	cmd.Shipping.Phone = "０９０１２３４５６７８"
	cmd.Card.Number = "４１１１１１１１１１１１１１１１"

	order, err := fixture.service.SubmitOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if order.ShippingInfo.Phone != "09012345678" {
		t.Fatalf("expected narrowed phone digits, got %q", order.ShippingInfo.Phone)
	}
}
