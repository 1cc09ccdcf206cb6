package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/platform/config"
)

var (
	// ErrPricingInvalidInput signals bad request data such as negative prices or unknown methods.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingOverflow is returned when the cart totals exceed the representable range.
	ErrPricingOverflow = errors.New("pricing: amount overflow")
)

// maxPricableSubtotal bounds the subtotal so percentage arithmetic
// (amount*percent+50 with percent <= 100) cannot overflow int64.
const maxPricableSubtotal = (math.MaxInt64 - 50) / 100

// PriceCommand describes the cart contents and checkout selections to price.
type PriceCommand struct {
	Items    []CartItem
	Delivery DeliveryMethod
	Payment  PaymentMethod
}

// PricingEngine computes charge breakdowns from configured rates and
// thresholds. All arithmetic is on minor currency units; the engine is pure
// and safe for concurrent use.
type PricingEngine struct {
	cfg config.PricingConfig
}

// NewPricingEngine constructs a PricingEngine over the supplied rates.
func NewPricingEngine(cfg config.PricingConfig) (*PricingEngine, error) {
	if cfg.TaxRatePercent < 0 || cfg.TaxRatePercent > 100 {
		return nil, fmt.Errorf("%w: tax rate out of range", ErrPricingInvalidInput)
	}
	if cfg.DiscountRatePercent < 0 || cfg.DiscountRatePercent > 100 {
		return nil, fmt.Errorf("%w: discount rate out of range", ErrPricingInvalidInput)
	}
	if cfg.FreeShippingThreshold < 0 || cfg.DiscountThreshold < 0 {
		return nil, fmt.Errorf("%w: thresholds must be non-negative", ErrPricingInvalidInput)
	}
	if cfg.StandardRate < 0 || cfg.ExpressRate < 0 || cfg.OvernightRate < 0 || cfg.CODFee < 0 {
		return nil, fmt.Errorf("%w: rates must be non-negative", ErrPricingInvalidInput)
	}
	return &PricingEngine{cfg: cfg}, nil
}

// Price produces the quote for the given items and checkout selections.
//
// Shipping drops to zero once the raw subtotal exceeds the free-shipping
// threshold; below it, the free tier falls back to the standard rate. The
// discount threshold is also evaluated against the raw subtotal, before tax.
func (e *PricingEngine) Price(_ context.Context, cmd PriceCommand) (Quote, error) {
	if e == nil {
		return Quote{}, fmt.Errorf("%w: engine not initialised", ErrPricingInvalidInput)
	}

	subtotal, err := e.subtotal(cmd.Items)
	if err != nil {
		return Quote{}, err
	}
	if subtotal > maxPricableSubtotal {
		return Quote{}, ErrPricingOverflow
	}

	shipping, err := e.shipping(subtotal, cmd.Delivery)
	if err != nil {
		return Quote{}, err
	}

	tax := roundHalfUpPercent(subtotal, e.cfg.TaxRatePercent)

	var discount int64
	if subtotal > e.cfg.DiscountThreshold {
		discount = subtotal * e.cfg.DiscountRatePercent / 100
	}

	codFee, err := e.codFee(cmd.Payment)
	if err != nil {
		return Quote{}, err
	}

	total := subtotal + shipping + tax + codFee - discount
	if total < 0 {
		return Quote{}, fmt.Errorf("%w: negative total", ErrPricingInvalidInput)
	}

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		CODFee:   codFee,
		Total:    total,
	}, nil
}

func (e *PricingEngine) subtotal(items []CartItem) (int64, error) {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: quantity must be positive for %q", ErrPricingInvalidInput, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return 0, fmt.Errorf("%w: negative unit price for %q", ErrPricingInvalidInput, item.ProductID)
		}
		qty := int64(item.Quantity)
		if item.UnitPrice > 0 && qty > math.MaxInt64/item.UnitPrice {
			return 0, ErrPricingOverflow
		}
		line := item.UnitPrice * qty
		if subtotal > math.MaxInt64-line {
			return 0, ErrPricingOverflow
		}
		subtotal += line
	}
	return subtotal, nil
}

func (e *PricingEngine) shipping(subtotal int64, delivery DeliveryMethod) (int64, error) {
	method := DeliveryMethod(strings.ToLower(strings.TrimSpace(string(delivery))))
	if method == "" {
		method = domain.DeliveryStandard
	}

	var rate int64
	switch method {
	case domain.DeliveryStandard:
		rate = e.cfg.StandardRate
	case domain.DeliveryExpress:
		rate = e.cfg.ExpressRate
	case domain.DeliveryOvernight:
		rate = e.cfg.OvernightRate
	case domain.DeliveryFree:
		// The complimentary tier only applies above the threshold.
		rate = e.cfg.StandardRate
	default:
		return 0, fmt.Errorf("%w: unknown delivery method %q", ErrPricingInvalidInput, delivery)
	}

	if subtotal > e.cfg.FreeShippingThreshold {
		return 0, nil
	}
	return rate, nil
}

func (e *PricingEngine) codFee(payment PaymentMethod) (int64, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(payment))))
	if method == "" {
		method = domain.PaymentCard
	}
	switch method {
	case domain.PaymentCard, domain.PaymentPayPal:
		return 0, nil
	case domain.PaymentCOD:
		return e.cfg.CODFee, nil
	default:
		return 0, fmt.Errorf("%w: unknown payment method %q", ErrPricingInvalidInput, payment)
	}
}

func roundHalfUpPercent(amount, percent int64) int64 {
	if amount <= 0 || percent <= 0 {
		return 0
	}
	return (amount*percent + 50) / 100
}

var _ Pricer = (*PricingEngine)(nil)
