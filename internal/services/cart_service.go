package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/repositories"
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart changed underneath the caller.
var ErrCartConflict = errors.New("cart service: conflict")

const (
	maxCartItems      = 100
	maxItemQuantity   = 99
	maxItemNameLength = 200
	defaultCurrency   = "USD"
)

// UpsertCartItemCommand adds a product to the cart or adjusts its quantity.
type UpsertCartItemCommand struct {
	UserID    string
	ItemID    string
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	ImagePath string
	Merge     bool
}

// EstimateCommand prices the current cart with the caller's checkout selections.
type EstimateCommand struct {
	UserID   string
	Delivery DeliveryMethod
	Payment  PaymentMethod
}

// CartServiceDeps wires the repository and pricing dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Pricer      Pricer
	Clock       func() time.Time
	Currency    string
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo     repositories.CartRepository
	pricer   Pricer
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("cart service: pricer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:     deps.Repository,
		pricer:   deps.Pricer,
		newID:    idGen,
		now:      func() time.Time { return clock().UTC() },
		currency: currency,
		logger:   logger,
	}, nil
}

// GetOrCreateCart loads the active cart for the user, creating one when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.Get(ctx, uid)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		created, err := s.repo.Save(ctx, s.newCart(uid), nil)
		if err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		cart = created
	}
	return cart, nil
}

// AddOrUpdateItem inserts the product or adjusts the stored quantity, then
// refreshes the persisted estimate.
func (s *cartService) AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if err := validateUpsertCommand(cmd); err != nil {
		return Cart{}, err
	}

	cart, err := s.GetOrCreateCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	index := s.findItem(cart.Items, cmd)
	if index >= 0 {
		item := &cart.Items[index]
		if cmd.Merge {
			item.Quantity += cmd.Quantity
		} else {
			item.Quantity = cmd.Quantity
		}
		if item.Quantity > maxItemQuantity {
			return Cart{}, fmt.Errorf("%w: quantity exceeds %d", ErrCartInvalidInput, maxItemQuantity)
		}
		item.UpdatedAt = &now
	} else {
		if id := strings.TrimSpace(cmd.ItemID); id != "" {
			return Cart{}, fmt.Errorf("%w: item %s", ErrCartNotFound, id)
		}
		if len(cart.Items) >= maxCartItems {
			return Cart{}, fmt.Errorf("%w: cart is full", ErrCartInvalidInput)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        s.newID(),
			ProductID: cmd.ProductID,
			Name:      strings.TrimSpace(cmd.Name),
			UnitPrice: cmd.UnitPrice,
			Quantity:  cmd.Quantity,
			Currency:  cart.Currency,
			ImagePath: strings.TrimSpace(cmd.ImagePath),
			AddedAt:   now,
		})
	}

	return s.persist(ctx, cart)
}

// RemoveItem deletes the line item from the cart and refreshes the estimate.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(itemID)
	if uid == "" || id == "" {
		return Cart{}, fmt.Errorf("%w: user id and item id are required", ErrCartInvalidInput)
	}

	cart, err := s.repo.Get(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	filtered := cart.Items[:0:0]
	removed := false
	for _, item := range cart.Items {
		if item.ID == id {
			removed = true
			continue
		}
		filtered = append(filtered, item)
	}
	if !removed {
		return Cart{}, fmt.Errorf("%w: item %s", ErrCartNotFound, id)
	}
	cart.Items = filtered

	return s.persist(ctx, cart)
}

// ClearCart removes every item from the user's cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "cart.cleared", map[string]any{"userId": uid})
	return nil
}

// Estimate prices the cart with the caller's selected delivery and payment
// methods without mutating stored state.
func (s *cartService) Estimate(ctx context.Context, cmd EstimateCommand) (Quote, error) {
	if s == nil || s.repo == nil || s.pricer == nil {
		return Quote{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Quote{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Quote{}, nil
		}
		return Quote{}, s.translateRepoError(err)
	}
	// An existing cart with no items prices the same as a missing cart.
	if len(cart.Items) == 0 {
		return Quote{}, nil
	}

	quote, err := s.pricer.Price(ctx, PriceCommand{
		Items:    cart.Items,
		Delivery: cmd.Delivery,
		Payment:  cmd.Payment,
	})
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return Quote{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
		}
		return Quote{}, err
	}
	return quote, nil
}

// persist recomputes the stored estimate with default selections and writes
// the cart under the optimistic-concurrency precondition.
func (s *cartService) persist(ctx context.Context, cart Cart) (Cart, error) {
	expected := cart.UpdatedAt
	cart.UpdatedAt = s.now()

	if quote, err := s.pricer.Price(ctx, PriceCommand{
		Items:    cart.Items,
		Delivery: domain.DeliveryStandard,
		Payment:  domain.PaymentCard,
	}); err == nil {
		cart.Estimate = &quote
	} else {
		cart.Estimate = nil
		s.logger(ctx, "cart.estimate.failed", map[string]any{
			"userId": cart.UserID,
			"error":  err.Error(),
		})
	}

	var precondition *time.Time
	if !expected.IsZero() {
		precondition = &expected
	}
	saved, err := s.repo.Save(ctx, cart, precondition)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *cartService) findItem(items []domain.CartItem, cmd UpsertCartItemCommand) int {
	for i, item := range items {
		if cmd.ItemID != "" && item.ID == cmd.ItemID {
			return i
		}
		if cmd.ItemID == "" && item.ProductID == cmd.ProductID {
			return i
		}
	}
	return -1
}

func (s *cartService) newCart(userID string) Cart {
	now := s.now()
	return Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrCartNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrCartConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
}

func validateUpsertCommand(cmd UpsertCartItemCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if strings.TrimSpace(cmd.ProductID) == "" && strings.TrimSpace(cmd.ItemID) == "" {
		return fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxItemQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxItemQuantity)
	}
	if cmd.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price must be non-negative", ErrCartInvalidInput)
	}
	if len(cmd.Name) > maxItemNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrCartInvalidInput, maxItemNameLength)
	}
	return nil
}

var _ CartService = (*cartService)(nil)
