package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/velour-beauty/api/internal/domain"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the charge is awaiting confirmation or, for
	// cash on delivery, collection by the courier.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the charge as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a terminal failure.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the charge has been refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedMethod is returned when no gateway handles the payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported payment method")

// Logger defines the logging contract for gateway operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// AuthorizationRequest captures the payload required to charge an order.
type AuthorizationRequest struct {
	OrderID  string
	UserID   string
	Amount   int64
	Currency string
	Method   domain.PaymentMethod
	Metadata map[string]string
}

// RefundRequest defines a refund attempt against a previous authorization.
type RefundRequest struct {
	IntentID string
	Amount   *int64
	Reason   string
	Method   domain.PaymentMethod
	Metadata map[string]string
}

// Authorization normalises gateway specific charge results for storage.
type Authorization struct {
	Provider  string
	IntentID  string
	Status    Status
	Amount    int64
	Currency  string
	CreatedAt time.Time
}

// Gateway defines the contract payment adapters implement. Checkout depends
// on this interface only, so swapping the processor never touches order flow.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error)
	Refund(ctx context.Context, req RefundRequest) (Authorization, error)
}

// Manager routes charges to the gateway registered for each payment method.
type Manager struct {
	gateways map[domain.PaymentMethod]Gateway
}

// NewManager constructs a Manager over the supplied gateways.
func NewManager(gateways map[domain.PaymentMethod]Gateway) (*Manager, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	registered := make(map[domain.PaymentMethod]Gateway, len(gateways))
	for method, gateway := range gateways {
		key := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(method))))
		if key == "" || gateway == nil {
			return nil, errors.New("payments: invalid gateway registration")
		}
		registered[key] = gateway
	}
	return &Manager{gateways: registered}, nil
}

func (m *Manager) resolve(method domain.PaymentMethod) (Gateway, error) {
	if m == nil || len(m.gateways) == 0 {
		return nil, errors.New("payments: manager not initialised")
	}
	key := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(method))))
	gateway, ok := m.gateways[key]
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	return gateway, nil
}

// Authorize delegates the charge to the gateway registered for the method.
func (m *Manager) Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	gateway, err := m.resolve(req.Method)
	if err != nil {
		return Authorization{}, err
	}
	return gateway.Authorize(ctx, req)
}

// Refund delegates the refund to the gateway registered for the method.
func (m *Manager) Refund(ctx context.Context, req RefundRequest) (Authorization, error) {
	gateway, err := m.resolve(req.Method)
	if err != nil {
		return Authorization{}, err
	}
	return gateway.Refund(ctx, req)
}

var _ Gateway = (*routingGateway)(nil)

// routingGateway adapts the Manager to the Gateway interface so callers can
// depend on a single Gateway regardless of how many processors are wired.
type routingGateway struct {
	manager *Manager
}

// Routing exposes the manager as a Gateway.
func (m *Manager) Routing() Gateway {
	return &routingGateway{manager: m}
}

func (g *routingGateway) Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	return g.manager.Authorize(ctx, req)
}

func (g *routingGateway) Refund(ctx context.Context, req RefundRequest) (Authorization, error) {
	return g.manager.Refund(ctx, req)
}
