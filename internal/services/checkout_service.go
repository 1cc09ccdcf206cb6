package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/payments"
	"github.com/velour-beauty/api/internal/platform/events"
	"github.com/velour-beauty/api/internal/platform/textutil"
	"github.com/velour-beauty/api/internal/repositories"
)

// ErrCheckoutInvalidInput indicates the submitted payload failed the validation gate.
var ErrCheckoutInvalidInput = errors.New("checkout: invalid input")

// ErrCheckoutEmptyCart indicates the user attempted to check out an empty cart.
var ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")

// ErrCheckoutPaymentDeclined indicates the gateway rejected the charge.
var ErrCheckoutPaymentDeclined = errors.New("checkout: payment declined")

// ErrCheckoutUnavailable indicates a backend dependency failed.
var ErrCheckoutUnavailable = errors.New("checkout: unavailable")

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[A-Za-z]{2,}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	cardDigits     = 16
	cvvDigits      = 3

	ordersCounterID   = "orders"
	orderNumberPrefix = "VB"

	maxGiftMessageLength = 500
	maxOrderNotesLength  = 1000

	defaultCODMinimum = 1000
	defaultCODMaximum = 50000
)

// CardDetails carries the raw card form fields submitted at checkout. The
// number and CVV never leave the validation gate.
type CardDetails struct {
	Number string
	Holder string
	Expiry string
	CVV    string
}

// SubmitOrderCommand is the full checkout payload.
type SubmitOrderCommand struct {
	UserID        string
	Shipping      ShippingInfo
	Delivery      DeliveryMethod
	Payment       PaymentMethod
	Card          *CardDetails
	GiftMessage   string
	OrderNotes    string
	TermsAccepted bool
	ClientQuote   *Quote
}

// CheckoutServiceDeps wires the dependencies required to submit orders.
type CheckoutServiceDeps struct {
	Carts     repositories.CartRepository
	Orders    repositories.OrderRepository
	Counters  repositories.CounterRepository
	Pricer    Pricer
	Gateway   payments.Gateway
	Publisher events.Publisher
	Sanitizer *bluemonday.Policy
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
	NewID     func() string

	CODMinimum int64
	CODMaximum int64
}

type checkoutService struct {
	carts     repositories.CartRepository
	orders    repositories.OrderRepository
	counters  repositories.CounterRepository
	pricer    Pricer
	gateway   payments.Gateway
	publisher events.Publisher
	sanitizer *bluemonday.Policy
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	newID     func() string
	codMin    int64
	codMax    int64
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("checkout service: pricer is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	codMin := deps.CODMinimum
	if codMin <= 0 {
		codMin = defaultCODMinimum
	}
	codMax := deps.CODMaximum
	if codMax <= codMin {
		codMax = defaultCODMaximum
	}

	return &checkoutService{
		carts:     deps.Carts,
		orders:    deps.Orders,
		counters:  deps.Counters,
		pricer:    deps.Pricer,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		sanitizer: sanitizer,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		newID:     newID,
		codMin:    codMin,
		codMax:    codMax,
	}, nil
}

// SubmitOrder validates the payload, prices the cart server-side, authorizes
// payment, creates the order and then clears the cart. Validation failures
// leave every backend untouched. A created order is never rolled back: cart
// clearing and event publishing failures after creation are logged only.
func (s *checkoutService) SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (Order, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if cmd.UserID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	cmd.Payment = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(cmd.Payment))))
	cmd.Delivery = domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(string(cmd.Delivery))))

	if err := validateSubmission(cmd); err != nil {
		return Order{}, err
	}

	cart, err := s.carts.Get(ctx, cmd.UserID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrCheckoutEmptyCart
		}
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	quote, err := s.pricer.Price(ctx, PriceCommand{
		Items:    cart.Items,
		Delivery: cmd.Delivery,
		Payment:  cmd.Payment,
	})
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return Order{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	if err := s.validateCODBounds(cmd.Payment, quote.Subtotal); err != nil {
		return Order{}, err
	}

	if cmd.ClientQuote != nil && *cmd.ClientQuote != quote {
		// The server-side quote is authoritative; a stale client total is
		// worth knowing about but never blocks submission.
		s.logger(ctx, "checkout.quote.mismatch", map[string]any{
			"userId":      cmd.UserID,
			"clientTotal": cmd.ClientQuote.Total,
			"serverTotal": quote.Total,
		})
	}

	now := s.now()
	orderID := s.newID()

	authorization, err := s.gateway.Authorize(ctx, payments.AuthorizationRequest{
		OrderID:  orderID,
		UserID:   cmd.UserID,
		Amount:   quote.Total,
		Currency: cart.Currency,
		Method:   cmd.Payment,
	})
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedMethod) {
			return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, cmd.Payment)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentDeclined, err)
	}

	orderNumber, err := s.nextOrderNumber(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	status := domain.OrderStatusPending
	if cmd.Payment == domain.PaymentCOD {
		status = domain.OrderStatusPendingPayment
	}

	order := domain.Order{
		ID:          orderID,
		OrderNumber: orderNumber,
		UserID:      cmd.UserID,
		Status:      status,
		Currency:    cart.Currency,
		Items:       orderItemsFromCart(cart.Items),
		Totals:      quote,
		ShippingInfo: domain.ShippingInfo{
			FirstName: strings.TrimSpace(cmd.Shipping.FirstName),
			LastName:  strings.TrimSpace(cmd.Shipping.LastName),
			Email:     strings.TrimSpace(cmd.Shipping.Email),
			Phone:     textutil.DigitsOnly(cmd.Shipping.Phone),
			Address:   strings.TrimSpace(cmd.Shipping.Address),
			City:      strings.TrimSpace(cmd.Shipping.City),
			State:     strings.TrimSpace(cmd.Shipping.State),
			Zip:       textutil.NarrowWidth(strings.TrimSpace(cmd.Shipping.Zip)),
			Country:   strings.TrimSpace(cmd.Shipping.Country),
		},
		Delivery: cmd.Delivery,
		Payment:  cmd.Payment,
		PaymentRef: &domain.OrderPayment{
			Provider:  authorization.Provider,
			IntentID:  authorization.IntentID,
			Status:    string(authorization.Status),
			Amount:    authorization.Amount,
			Currency:  authorization.Currency,
			CreatedAt: authorization.CreatedAt,
		},
		GiftMessage: s.sanitizeText(cmd.GiftMessage, maxGiftMessageLength),
		OrderNotes:  s.sanitizeText(cmd.OrderNotes, maxOrderNotesLength),
		CreatedAt:   now,
		UpdatedAt:   now,
		PlacedAt:    &now,
	}

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	s.logger(ctx, "checkout.order.created", map[string]any{
		"orderId":     created.ID,
		"orderNumber": created.OrderNumber,
		"userId":      created.UserID,
		"total":       created.Totals.Total,
		"payment":     string(created.Payment),
	})

	if err := s.carts.Clear(ctx, cmd.UserID); err != nil {
		s.logger(ctx, "checkout.cart.clear_failed", map[string]any{
			"orderId": created.ID,
			"userId":  cmd.UserID,
			"error":   err.Error(),
		})
	}

	s.publishEvents(ctx, created, cart.ID)

	return created, nil
}

func (s *checkoutService) publishEvents(ctx context.Context, order Order, cartID string) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishOrderCreated(ctx, events.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Total:         order.Totals.Total,
		Currency:      order.Currency,
		PaymentMethod: string(order.Payment),
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt,
	}); err != nil {
		s.logger(ctx, "checkout.events.order_created_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
	if _, err := s.publisher.PublishCartCleared(ctx, events.CartClearedEvent{
		CartID:    cartID,
		UserID:    order.UserID,
		OrderID:   order.ID,
		ClearedAt: s.now(),
	}); err != nil {
		s.logger(ctx, "checkout.events.cart_cleared_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) nextOrderNumber(ctx context.Context) (string, error) {
	value, err := s.counters.Next(ctx, ordersCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", orderNumberPrefix, value), nil
}

func (s *checkoutService) sanitizeText(value string, limit int) string {
	value = strings.TrimSpace(s.sanitizer.Sanitize(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}

// validateSubmission is the checkout gate. Guard clauses run in a fixed
// order and the first failure wins, so clients always receive one message.
func validateSubmission(cmd SubmitOrderCommand) error {
	shipping := cmd.Shipping
	required := []struct {
		value string
		label string
	}{
		{shipping.FirstName, "first name"},
		{shipping.LastName, "last name"},
		{shipping.Email, "email"},
		{shipping.Phone, "phone"},
		{shipping.Address, "address"},
		{shipping.City, "city"},
		{shipping.State, "state"},
		{shipping.Zip, "zip code"},
		{shipping.Country, "country"},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrCheckoutInvalidInput, field.label)
		}
	}

	if !emailPattern.MatchString(strings.TrimSpace(shipping.Email)) {
		return fmt.Errorf("%w: email address is invalid", ErrCheckoutInvalidInput)
	}

	phone := textutil.DigitsOnly(shipping.Phone)
	if len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits {
		return fmt.Errorf("%w: phone number is invalid", ErrCheckoutInvalidInput)
	}

	switch cmd.Payment {
	case domain.PaymentCard:
		if err := validateCard(cmd.Card); err != nil {
			return err
		}
	case domain.PaymentPayPal, domain.PaymentCOD:
		// COD subtotal bounds are enforced after pricing.
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.Payment)
	}

	switch cmd.Delivery {
	case domain.DeliveryStandard, domain.DeliveryExpress, domain.DeliveryOvernight, domain.DeliveryFree:
	default:
		return fmt.Errorf("%w: unknown delivery method %q", ErrCheckoutInvalidInput, cmd.Delivery)
	}

	if !cmd.TermsAccepted {
		return fmt.Errorf("%w: terms must be accepted", ErrCheckoutInvalidInput)
	}
	return nil
}

func validateCard(card *CardDetails) error {
	if card == nil {
		return fmt.Errorf("%w: card details are required", ErrCheckoutInvalidInput)
	}
	number := textutil.DigitsOnly(card.Number)
	if len(number) != cardDigits {
		return fmt.Errorf("%w: card number must be %d digits", ErrCheckoutInvalidInput, cardDigits)
	}
	if strings.TrimSpace(card.Holder) == "" {
		return fmt.Errorf("%w: card holder name is required", ErrCheckoutInvalidInput)
	}
	if !expiryPattern.MatchString(strings.TrimSpace(card.Expiry)) {
		return fmt.Errorf("%w: card expiry must be MM/YY", ErrCheckoutInvalidInput)
	}
	if cvv := textutil.DigitsOnly(card.CVV); len(cvv) != cvvDigits {
		return fmt.Errorf("%w: card cvv must be %d digits", ErrCheckoutInvalidInput, cvvDigits)
	}
	return nil
}

func (s *checkoutService) validateCODBounds(method PaymentMethod, subtotal int64) error {
	if method != domain.PaymentCOD {
		return nil
	}
	if subtotal < s.codMin {
		return fmt.Errorf("%w: cash on delivery requires a subtotal of at least %d", ErrCheckoutInvalidInput, s.codMin)
	}
	if subtotal >= s.codMax {
		return fmt.Errorf("%w: cash on delivery is limited to subtotals under %d", ErrCheckoutInvalidInput, s.codMax)
	}
	return nil
}

func orderItemsFromCart(items []CartItem) []OrderLineItem {
	lines := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.UnitPrice * int64(item.Quantity),
			ImagePath: item.ImagePath,
		})
	}
	return lines
}

var _ CheckoutService = (*checkoutService)(nil)
