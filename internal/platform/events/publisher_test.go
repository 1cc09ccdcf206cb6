package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestPublisher(t *testing.T) (*PubSubPublisher, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	orderTopic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	cartTopic, err := client.CreateTopic(ctx, "cart-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(orderTopic, cartTopic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	return publisher, srv
}

func TestPublishOrderCreated(t *testing.T) {
	publisher, srv := newTestPublisher(t)
	ctx := context.Background()

	event := OrderCreatedEvent{
		OrderID:       "order_01J0000000000000000000",
		UserID:        "user-1",
		Total:         12359,
		Currency:      "USD",
		PaymentMethod: "cod",
		Status:        "pending_payment",
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderCreated(ctx, event); err != nil {
		t.Fatalf("PublishOrderCreated: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload OrderCreatedEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID || payload.Total != event.Total {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != TypeOrderCreated {
		t.Fatalf("expected eventType attribute %q, got %q", TypeOrderCreated, attr)
	}
	if attr := messages[0].Attributes["paymentMethod"]; attr != "cod" {
		t.Fatalf("expected paymentMethod attribute, got %q", attr)
	}
}

func TestPublishCartCleared(t *testing.T) {
	publisher, srv := newTestPublisher(t)
	ctx := context.Background()

	event := CartClearedEvent{
		CartID:    "cart-1",
		UserID:    "user-1",
		OrderID:   "order-1",
		ClearedAt: time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
	}

	if _, err := publisher.PublishCartCleared(ctx, event); err != nil {
		t.Fatalf("PublishCartCleared: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["eventType"]; attr != TypeCartCleared {
		t.Fatalf("expected eventType attribute %q, got %q", TypeCartCleared, attr)
	}
	if attr := messages[0].Attributes["cartId"]; attr != "cart-1" {
		t.Fatalf("expected cartId attribute, got %q", attr)
	}
}

func TestPublisherRequiresTopics(t *testing.T) {
	if _, err := NewPubSubPublisher(nil, nil); err == nil {
		t.Fatal("expected error for missing topics")
	}
}
