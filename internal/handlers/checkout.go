package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/platform/auth"
	"github.com/velour-beauty/api/internal/platform/httpx"
	"github.com/velour-beauty/api/internal/services"
)

const maxCheckoutBodySize = 64 * 1024

// CheckoutHandlers exposes the order submission endpoint.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs the checkout handler group.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{authn: authn, checkout: checkout}
}

// Routes wires the /checkout endpoint onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.submitOrder)
}

type checkoutShippingRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

type checkoutCardRequest struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

type checkoutQuoteRequest struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	CODFee   int64 `json:"codFee"`
	Total    int64 `json:"total"`
}

type submitOrderRequest struct {
	Shipping      checkoutShippingRequest `json:"shipping"`
	Delivery      string                  `json:"delivery"`
	Payment       string                  `json:"payment"`
	Card          *checkoutCardRequest    `json:"card"`
	GiftMessage   string                  `json:"giftMessage"`
	OrderNotes    string                  `json:"orderNotes"`
	TermsAccepted bool                    `json:"termsAccepted"`
	Quote         *checkoutQuoteRequest   `json:"quote"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

func (h *CheckoutHandlers) submitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.SubmitOrderCommand{
		UserID: identity.UID,
		Shipping: domain.ShippingInfo{
			FirstName: req.Shipping.FirstName,
			LastName:  req.Shipping.LastName,
			Email:     req.Shipping.Email,
			Phone:     req.Shipping.Phone,
			Address:   req.Shipping.Address,
			City:      req.Shipping.City,
			State:     req.Shipping.State,
			Zip:       req.Shipping.Zip,
			Country:   req.Shipping.Country,
		},
		Delivery:      domain.DeliveryMethod(req.Delivery),
		Payment:       domain.PaymentMethod(req.Payment),
		GiftMessage:   req.GiftMessage,
		OrderNotes:    req.OrderNotes,
		TermsAccepted: req.TermsAccepted,
	}
	if req.Card != nil {
		cmd.Card = &services.CardDetails{
			Number: req.Card.Number,
			Holder: req.Card.Holder,
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
		}
	}
	if req.Quote != nil {
		cmd.ClientQuote = &domain.Quote{
			Subtotal: req.Quote.Subtotal,
			Shipping: req.Quote.Shipping,
			Tax:      req.Quote.Tax,
			Discount: req.Quote.Discount,
			CODFee:   req.Quote.CODFee,
			Total:    req.Quote.Total,
		}
	}

	order, err := h.checkout.SubmitOrder(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", checkoutFailureMessage(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "your cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutPaymentDeclined):
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", "payment could not be processed", http.StatusPaymentRequired))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
	}
}

// checkoutFailureMessage strips the known sentinel prefixes so clients see
// only the first-failure message from the validation gate. Stripping by
// sentinel keeps messages intact when they contain their own colons, such as
// pricing errors quoting a product id.
func checkoutFailureMessage(err error) string {
	message := err.Error()
	prefixes := []string{
		services.ErrCheckoutInvalidInput.Error() + ": ",
		services.ErrPricingInvalidInput.Error() + ": ",
	}
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range prefixes {
			if rest, ok := strings.CutPrefix(message, prefix); ok {
				message = rest
				stripped = true
			}
		}
	}
	return message
}
