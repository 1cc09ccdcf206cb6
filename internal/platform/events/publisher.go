package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// Event type attribute values stamped on every published message.
const (
	TypeOrderCreated = "order.created"
	TypeCartCleared  = "cart.cleared"
)

// OrderCreatedEvent notifies downstream consumers that checkout produced an order.
type OrderCreatedEvent struct {
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId"`
	Total         int64     `json:"total"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CartClearedEvent signals that a user's cart was emptied, so cached cart
// counts should be refreshed.
type CartClearedEvent struct {
	CartID    string    `json:"cartId"`
	UserID    string    `json:"userId"`
	OrderID   string    `json:"orderId,omitempty"`
	ClearedAt time.Time `json:"clearedAt"`
}

// Publisher emits domain events for asynchronous consumers.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) (string, error)
	PublishCartCleared(ctx context.Context, event CartClearedEvent) (string, error)
}

// PubSubPublisher publishes domain events to Pub/Sub topics.
type PubSubPublisher struct {
	orderTopic *pubsub.Topic
	cartTopic  *pubsub.Topic
	marshal    func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubPublisher(orderTopic, cartTopic *pubsub.Topic) (*PubSubPublisher, error) {
	if orderTopic == nil {
		return nil, errors.New("pubsub publisher: order topic is required")
	}
	if cartTopic == nil {
		return nil, errors.New("pubsub publisher: cart topic is required")
	}
	return &PubSubPublisher{
		orderTopic: orderTopic,
		cartTopic:  cartTopic,
		marshal:    json.Marshal,
	}, nil
}

// PublishOrderCreated enqueues an order.created message on the order topic.
func (p *PubSubPublisher) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) (string, error) {
	if p == nil || p.orderTopic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order created event: %w", err)
	}

	attrs := map[string]string{"eventType": TypeOrderCreated}
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "paymentMethod", event.PaymentMethod)

	return publish(ctx, p.orderTopic, data, attrs)
}

// PublishCartCleared enqueues a cart.cleared message on the cart topic.
func (p *PubSubPublisher) PublishCartCleared(ctx context.Context, event CartClearedEvent) (string, error) {
	if p == nil || p.cartTopic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal cart cleared event: %w", err)
	}

	attrs := map[string]string{"eventType": TypeCartCleared}
	setAttr(attrs, "cartId", event.CartID)
	setAttr(attrs, "userId", event.UserID)

	return publish(ctx, p.cartTopic, data, attrs)
}

func publish(ctx context.Context, topic *pubsub.Topic, data []byte, attrs map[string]string) (string, error) {
	result := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", attrs["eventType"], err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ Publisher = (*PubSubPublisher)(nil)
