package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/velour-beauty/api/internal/domain"
)

type stubGateway struct {
	authorized []AuthorizationRequest
	refunded   []RefundRequest
	result     Authorization
	err        error
}

func (s *stubGateway) Authorize(_ context.Context, req AuthorizationRequest) (Authorization, error) {
	s.authorized = append(s.authorized, req)
	return s.result, s.err
}

func (s *stubGateway) Refund(_ context.Context, req RefundRequest) (Authorization, error) {
	s.refunded = append(s.refunded, req)
	return s.result, s.err
}

func TestManagerRoutesByMethod(t *testing.T) {
	card := &stubGateway{result: Authorization{Provider: "stripe", Status: StatusSucceeded}}
	cod := &stubGateway{result: Authorization{Provider: "cod", Status: StatusPending}}

	manager, err := NewManager(map[domain.PaymentMethod]Gateway{
		domain.PaymentCard: card,
		domain.PaymentCOD:  cod,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	auth, err := manager.Authorize(context.Background(), AuthorizationRequest{
		Method: domain.PaymentCard,
		Amount: 6295,
	})
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if auth.Provider != "stripe" {
		t.Fatalf("expected stripe authorization, got %q", auth.Provider)
	}
	if len(card.authorized) != 1 || len(cod.authorized) != 0 {
		t.Fatalf("expected card gateway to receive the charge")
	}

	auth, err = manager.Authorize(context.Background(), AuthorizationRequest{
		Method: domain.PaymentMethod("  COD  "),
		Amount: 12359,
	})
	if err != nil {
		t.Fatalf("Authorize cod returned error: %v", err)
	}
	if auth.Status != StatusPending {
		t.Fatalf("expected pending cod authorization, got %q", auth.Status)
	}
}

func TestManagerRejectsUnknownMethod(t *testing.T) {
	manager, err := NewManager(map[domain.PaymentMethod]Gateway{
		domain.PaymentCard: &stubGateway{},
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	_, err = manager.Authorize(context.Background(), AuthorizationRequest{Method: "wire_transfer", Amount: 100})
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestRoutingGatewayDelegates(t *testing.T) {
	card := &stubGateway{result: Authorization{IntentID: "pi_1", Status: StatusRefunded}}
	manager, err := NewManager(map[domain.PaymentMethod]Gateway{
		domain.PaymentCard: card,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	gateway := manager.Routing()
	auth, err := gateway.Refund(context.Background(), RefundRequest{
		IntentID: "pi_1",
		Method:   domain.PaymentCard,
	})
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if auth.IntentID != "pi_1" || len(card.refunded) != 1 {
		t.Fatalf("expected refund to reach the card gateway")
	}
}

func TestSimulatedGatewayAuthorizes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gateway := NewSimulatedGateway(SimulatedGatewayConfig{
		Latency: time.Millisecond,
		Clock:   func() time.Time { return now },
	})

	auth, err := gateway.Authorize(context.Background(), AuthorizationRequest{
		OrderID:  "order-1",
		Amount:   6295,
		Currency: "usd",
	})
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if auth.Status != StatusSucceeded {
		t.Fatalf("expected succeeded status, got %q", auth.Status)
	}
	if !strings.HasPrefix(auth.IntentID, "sim_") {
		t.Fatalf("expected simulated intent id, got %q", auth.IntentID)
	}
	if auth.Currency != "USD" {
		t.Fatalf("expected normalised currency, got %q", auth.Currency)
	}
	if !auth.CreatedAt.Equal(now) {
		t.Fatalf("expected injected clock time, got %v", auth.CreatedAt)
	}
}

func TestSimulatedGatewayHonoursCancellation(t *testing.T) {
	gateway := NewSimulatedGateway(SimulatedGatewayConfig{Latency: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Authorize(ctx, AuthorizationRequest{Amount: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCODGatewayStaysPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gateway := NewCODGateway(func() time.Time { return now }, nil)

	auth, err := gateway.Authorize(context.Background(), AuthorizationRequest{
		OrderID:  "order-9",
		Amount:   12359,
		Currency: "usd",
	})
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if auth.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", auth.Status)
	}
	if auth.IntentID != "cod_order-9" {
		t.Fatalf("unexpected intent id %q", auth.IntentID)
	}

	refund, err := gateway.Refund(context.Background(), RefundRequest{IntentID: auth.IntentID})
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if refund.Status != StatusRefunded {
		t.Fatalf("expected refunded status, got %q", refund.Status)
	}
}
