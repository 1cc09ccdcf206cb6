package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/platform/auth"
	"github.com/velour-beauty/api/internal/services"
)

type stubVerifier struct {
	uid string
	err error
}

func (v *stubVerifier) VerifyToken(_ context.Context, _ string) (auth.TokenClaims, error) {
	if v.err != nil {
		return auth.TokenClaims{}, v.err
	}
	return auth.TokenClaims{UID: v.uid, Claims: map[string]any{"email": "ava@example.com"}}, nil
}

func newTestAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(&stubVerifier{uid: "user-1"})
}

type stubCartService struct {
	cart       domain.Cart
	quote      domain.Quote
	err        error
	cleared    []string
	lastUpsert services.UpsertCartItemCommand
}

func (s *stubCartService) GetOrCreateCart(_ context.Context, userID string) (domain.Cart, error) {
	if s.err != nil {
		return domain.Cart{}, s.err
	}
	cart := s.cart
	cart.UserID = userID
	return cart, nil
}

func (s *stubCartService) AddOrUpdateItem(_ context.Context, cmd services.UpsertCartItemCommand) (domain.Cart, error) {
	s.lastUpsert = cmd
	if s.err != nil {
		return domain.Cart{}, s.err
	}
	return s.cart, nil
}

func (s *stubCartService) RemoveItem(_ context.Context, _, _ string) (domain.Cart, error) {
	if s.err != nil {
		return domain.Cart{}, s.err
	}
	return s.cart, nil
}

func (s *stubCartService) ClearCart(_ context.Context, userID string) error {
	s.cleared = append(s.cleared, userID)
	return s.err
}

func (s *stubCartService) Estimate(_ context.Context, _ services.EstimateCommand) (domain.Quote, error) {
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	return s.quote, nil
}

func newCartRouter(service services.CartService) chi.Router {
	r := chi.NewRouter()
	NewCartHandlers(newTestAuthenticator(), service).Routes(r)
	return r
}

func TestGetCartRequiresLogin(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "please_login" {
		t.Fatalf("expected please_login error code, got %v", body["error"])
	}
}

func TestGetCartReturnsCart(t *testing.T) {
	service := &stubCartService{cart: domain.Cart{
		ID:       "user-1",
		Currency: "USD",
		Items:    []domain.CartItem{{ID: "item-1", ProductID: "lipstick-01", UnitPrice: 2500, Quantity: 2}},
		Estimate: &domain.Quote{Subtotal: 5000, Shipping: 895, Tax: 400, Total: 6295},
	}}
	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Cart.UserID != "user-1" || len(body.Cart.Items) != 1 {
		t.Fatalf("unexpected cart payload %+v", body.Cart)
	}
	if body.Cart.Estimate == nil || body.Cart.Estimate.Total != 6295 {
		t.Fatalf("expected estimate in payload")
	}
}

func TestUpsertItemParsesBody(t *testing.T) {
	service := &stubCartService{}
	router := newCartRouter(service)

	payload := `{"productId":"lipstick-01","name":"Velvet Lipstick","unitPrice":2500,"quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if service.lastUpsert.ProductID != "lipstick-01" || service.lastUpsert.Quantity != 2 {
		t.Fatalf("unexpected command %+v", service.lastUpsert)
	}
	if service.lastUpsert.UserID != "user-1" {
		t.Fatalf("expected user id from token, got %q", service.lastUpsert.UserID)
	}
}

func TestUpsertItemRejectsBadJSON(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpsertItemMapsInvalidInput(t *testing.T) {
	router := newCartRouter(&stubCartService{err: services.ErrCartInvalidInput})

	payload := `{"productId":"lipstick-01","quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRemoveItemMapsNotFound(t *testing.T) {
	router := newCartRouter(&stubCartService{err: services.ErrCartNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/items/item-9", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestClearCartReturnsNoContent(t *testing.T) {
	service := &stubCartService{}
	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(service.cleared) != 1 || service.cleared[0] != "user-1" {
		t.Fatalf("expected clear for user-1, got %v", service.cleared)
	}
}

func TestEstimatePassesQueryParams(t *testing.T) {
	service := &stubCartService{quote: domain.Quote{Subtotal: 12000, Tax: 960, Discount: 1200, CODFee: 599, Total: 12359}}
	router := newCartRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/estimate?delivery=free&payment=cod", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Estimate quotePayload `json:"estimate"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Estimate.Total != 12359 {
		t.Fatalf("expected total 12359, got %d", body.Estimate.Total)
	}
}
