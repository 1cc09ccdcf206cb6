package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	params *stripe.PaymentIntentParams
	intent *stripe.PaymentIntent
	err    error
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.params = params
	return s.intent, s.err
}

type stubRefundAPI struct {
	params *stripe.RefundParams
	refund *stripe.Refund
	err    error
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	s.params = params
	return s.refund, s.err
}

func TestStripeGatewayAuthorize(t *testing.T) {
	intents := &stubIntentAPI{intent: &stripe.PaymentIntent{
		ID:       "pi_123",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   6295,
		Currency: stripe.CurrencyUSD,
	}}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	gateway, err := NewStripeGateway(StripeGatewayConfig{
		Clock:   func() time.Time { return now },
		Clients: &stripeClients{intents: intents, refunds: &stubRefundAPI{}},
	})
	if err != nil {
		t.Fatalf("NewStripeGateway returned error: %v", err)
	}

	auth, err := gateway.Authorize(context.Background(), AuthorizationRequest{
		OrderID:  "order-1",
		UserID:   "user-1",
		Amount:   6295,
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if auth.IntentID != "pi_123" || auth.Status != StatusSucceeded {
		t.Fatalf("unexpected authorization %+v", auth)
	}
	if auth.Currency != "USD" {
		t.Fatalf("expected upper case currency, got %q", auth.Currency)
	}

	if intents.params == nil {
		t.Fatalf("expected payment intent params to be captured")
	}
	if got := stripe.Int64Value(intents.params.Amount); got != 6295 {
		t.Fatalf("expected amount 6295, got %d", got)
	}
	if got := stripe.StringValue(intents.params.Currency); got != "usd" {
		t.Fatalf("expected lower case currency for stripe, got %q", got)
	}
	if intents.params.Metadata["orderId"] != "order-1" {
		t.Fatalf("expected order id in metadata, got %v", intents.params.Metadata)
	}
	if intents.params.IdempotencyKey == nil || *intents.params.IdempotencyKey != "order-order-1" {
		t.Fatalf("expected idempotency key derived from order id")
	}
}

func TestStripeGatewayRefund(t *testing.T) {
	refunds := &stubRefundAPI{refund: &stripe.Refund{
		ID:       "re_1",
		Amount:   6295,
		Currency: stripe.CurrencyUSD,
	}}

	gateway, err := NewStripeGateway(StripeGatewayConfig{
		Clients: &stripeClients{intents: &stubIntentAPI{}, refunds: refunds},
	})
	if err != nil {
		t.Fatalf("NewStripeGateway returned error: %v", err)
	}

	amount := int64(6295)
	auth, err := gateway.Refund(context.Background(), RefundRequest{
		IntentID: "pi_123",
		Amount:   &amount,
		Reason:   "requested_by_customer",
	})
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if auth.Status != StatusRefunded || auth.Amount != 6295 {
		t.Fatalf("unexpected refund authorization %+v", auth)
	}
	if got := stripe.StringValue(refunds.params.PaymentIntent); got != "pi_123" {
		t.Fatalf("expected payment intent pi_123, got %q", got)
	}
	if got := stripe.StringValue(refunds.params.Reason); got != string(stripe.RefundReasonRequestedByCustomer) {
		t.Fatalf("unexpected refund reason %q", got)
	}
}

func TestStripeGatewayRequiresKeyOrClients(t *testing.T) {
	if _, err := NewStripeGateway(StripeGatewayConfig{}); err == nil {
		t.Fatalf("expected error without api key or clients")
	}
}
