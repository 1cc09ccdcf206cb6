package payments

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultSimulatedLatency mirrors the observed processing time of the
// production processor so checkout behaves realistically without one.
const DefaultSimulatedLatency = 1500 * time.Millisecond

// SimulatedGatewayConfig configures the SimulatedGateway.
type SimulatedGatewayConfig struct {
	Latency time.Duration
	Logger  Logger
	Clock   func() time.Time
	Entropy *rand.Rand
}

// SimulatedGateway approves every charge after a configurable delay. It is
// the default gateway in local and staging environments.
type SimulatedGateway struct {
	latency time.Duration
	clock   func() time.Time
	logger  Logger
	entropy *ulid.MonotonicEntropy
}

// NewSimulatedGateway constructs a gateway that always approves.
func NewSimulatedGateway(cfg SimulatedGatewayConfig) *SimulatedGateway {
	latency := cfg.Latency
	if latency < 0 {
		latency = 0
	}
	if cfg.Latency == 0 {
		latency = DefaultSimulatedLatency
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	seed := cfg.Entropy
	if seed == nil {
		seed = rand.New(rand.NewSource(clock().UnixNano()))
	}
	return &SimulatedGateway{
		latency: latency,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
		entropy: ulid.Monotonic(seed, 0),
	}
}

// Authorize waits out the configured latency and reports a captured charge.
func (g *SimulatedGateway) Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	if g == nil {
		return Authorization{}, errors.New("payments: simulated gateway is nil")
	}
	if req.Amount <= 0 {
		return Authorization{}, errors.New("payments: amount must be positive")
	}
	if err := g.wait(ctx); err != nil {
		return Authorization{}, err
	}

	now := g.clock()
	intentID := "sim_" + ulid.MustNew(ulid.Timestamp(now), g.entropy).String()

	g.logger(ctx, "payments.simulated.authorized", map[string]any{
		"paymentIntent": intentID,
		"orderId":       req.OrderID,
		"amount":        req.Amount,
	})

	return Authorization{
		Provider:  "simulated",
		IntentID:  intentID,
		Status:    StatusSucceeded,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		CreatedAt: now,
	}, nil
}

// Refund immediately acknowledges the refund.
func (g *SimulatedGateway) Refund(ctx context.Context, req RefundRequest) (Authorization, error) {
	if g == nil {
		return Authorization{}, errors.New("payments: simulated gateway is nil")
	}
	if strings.TrimSpace(req.IntentID) == "" {
		return Authorization{}, errors.New("payments: intent id is required")
	}
	if err := g.wait(ctx); err != nil {
		return Authorization{}, err
	}

	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}
	g.logger(ctx, "payments.simulated.refunded", map[string]any{
		"paymentIntent": req.IntentID,
		"amount":        amount,
	})

	return Authorization{
		Provider:  "simulated",
		IntentID:  req.IntentID,
		Status:    StatusRefunded,
		Amount:    amount,
		CreatedAt: g.clock(),
	}, nil
}

func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Gateway = (*SimulatedGateway)(nil)

// CODGateway records cash on delivery orders without charging anything. The
// authorization stays pending until the courier collects payment.
type CODGateway struct {
	clock  func() time.Time
	logger Logger
}

// NewCODGateway constructs the cash on delivery gateway.
func NewCODGateway(clock func() time.Time, logger Logger) *CODGateway {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CODGateway{
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}
}

// Authorize registers the pending collection without moving money.
func (g *CODGateway) Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	if g == nil {
		return Authorization{}, errors.New("payments: cod gateway is nil")
	}
	if req.Amount <= 0 {
		return Authorization{}, errors.New("payments: amount must be positive")
	}

	now := g.clock()
	intentID := "cod_" + req.OrderID

	g.logger(ctx, "payments.cod.pending", map[string]any{
		"orderId": req.OrderID,
		"amount":  req.Amount,
	})

	return Authorization{
		Provider:  "cod",
		IntentID:  intentID,
		Status:    StatusPending,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		CreatedAt: now,
	}, nil
}

// Refund acknowledges the reversal. Nothing was collected up front, so the
// refund only records the state change.
func (g *CODGateway) Refund(ctx context.Context, req RefundRequest) (Authorization, error) {
	if g == nil {
		return Authorization{}, errors.New("payments: cod gateway is nil")
	}
	if strings.TrimSpace(req.IntentID) == "" {
		return Authorization{}, errors.New("payments: intent id is required")
	}

	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}
	return Authorization{
		Provider:  "cod",
		IntentID:  req.IntentID,
		Status:    StatusRefunded,
		Amount:    amount,
		CreatedAt: g.clock(),
	}, nil
}

var _ Gateway = (*CODGateway)(nil)
