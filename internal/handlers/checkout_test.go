package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/services"
)

type stubCheckoutService struct {
	order   domain.Order
	err     error
	lastCmd services.SubmitOrderCommand
	calls   int
}

func (s *stubCheckoutService) SubmitOrder(_ context.Context, cmd services.SubmitOrderCommand) (domain.Order, error) {
	s.calls++
	s.lastCmd = cmd
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return s.order, nil
}

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(newTestAuthenticator(), service).Routes(r)
	return r
}

func checkoutBody() string {
	return `{
		"shipping": {
			"firstName": "Ava",
			"lastName": "Nguyen",
			"email": "ava@example.com",
			"phone": "(555) 123-4567",
			"address": "12 Rose Lane",
			"city": "Portland",
			"state": "OR",
			"zip": "97201",
			"country": "US"
		},
		"delivery": "standard",
		"payment": "card",
		"card": {"number": "4111 1111 1111 1111", "holder": "Ava Nguyen", "expiry": "12/27", "cvv": "123"},
		"termsAccepted": true
	}`
}

func TestSubmitOrderRequiresLogin(t *testing.T) {
	service := &stubCheckoutService{}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("expected no service call without a token")
	}
}

func TestSubmitOrderCreated(t *testing.T) {
	service := &stubCheckoutService{order: domain.Order{
		ID:          "order-1",
		OrderNumber: "VB-000001",
		UserID:      "user-1",
		Status:      domain.OrderStatusPending,
		Currency:    "USD",
		Totals:      domain.Quote{Subtotal: 5000, Shipping: 895, Tax: 400, Total: 6295},
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.OrderNumber != "VB-000001" || body.Order.Status != "pending" {
		t.Fatalf("unexpected order payload %+v", body.Order)
	}

	if service.lastCmd.UserID != "user-1" {
		t.Fatalf("expected user id from token, got %q", service.lastCmd.UserID)
	}
	if service.lastCmd.Card == nil || service.lastCmd.Card.Holder != "Ava Nguyen" {
		t.Fatalf("expected card details forwarded")
	}
	if !service.lastCmd.TermsAccepted {
		t.Fatalf("expected terms acceptance forwarded")
	}
}

func TestSubmitOrderValidationFailureReturnsFirstMessage(t *testing.T) {
	service := &stubCheckoutService{
		err: fmt.Errorf("%w: card number must be 16 digits", services.ErrCheckoutInvalidInput),
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["message"] != "card number must be 16 digits" {
		t.Fatalf("expected bare validation message, got %v", body["message"])
	}
}

func TestSubmitOrderValidationMessageKeepsInnerColons(t *testing.T) {
	service := &stubCheckoutService{
		err: fmt.Errorf("%w: %v", services.ErrCheckoutInvalidInput,
			fmt.Errorf("%w: quantity must be positive for %q", services.ErrPricingInvalidInput, "lip: stick")),
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["message"] != `quantity must be positive for "lip: stick"` {
		t.Fatalf("expected full message after sentinel stripping, got %v", body["message"])
	}
}

func TestSubmitOrderEmptyCart(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{err: services.ErrCheckoutEmptyCart})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "cart_empty" {
		t.Fatalf("expected cart_empty code, got %v", body["error"])
	}
}

func TestSubmitOrderPaymentDeclined(t *testing.T) {
	service := &stubCheckoutService{
		err: fmt.Errorf("%w: card declined", services.ErrCheckoutPaymentDeclined),
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(checkoutBody()))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rr.Code)
	}
}

func TestSubmitOrderRejectsEmptyBody(t *testing.T) {
	service := &stubCheckoutService{}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("expected no service call for empty body")
	}
}
