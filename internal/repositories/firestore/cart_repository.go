package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/velour-beauty/api/internal/domain"
	pfirestore "github.com/velour-beauty/api/internal/platform/firestore"
	"github.com/velour-beauty/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts within Firestore. Documents are keyed by
// user ID and embed their items, so a cart read is a single document get.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:     pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil),
		provider: provider,
	}, nil
}

// Get loads the cart for the given user ID.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return cartFromDocument(doc), nil
}

// Save upserts the cart document. When expectedUpdate is provided the write
// carries a last-update-time precondition so concurrent writers conflict
// instead of silently overwriting each other.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	cartID := strings.TrimSpace(cart.UserID)
	if cartID == "" {
		cartID = strings.TrimSpace(cart.ID)
	}
	if cartID == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocumentFrom(cart, createdAt, now)

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, cartID, doc)
		if err != nil {
			return domain.Cart{}, err
		}
		saved := cart
		saved.ID = cartID
		saved.UserID = cartID
		saved.CreatedAt = createdAt
		saved.UpdatedAt = result.UpdateTime
		return saved, nil
	}

	updates := []firestore.Update{
		{Path: "currency", Value: doc.Currency},
		{Path: "items", Value: doc.Items},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	if len(doc.Metadata) == 0 {
		updates = append(updates, firestore.Update{Path: "metadata", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "metadata", Value: doc.Metadata})
	}
	if doc.Estimate == nil {
		updates = append(updates, firestore.Update{Path: "estimate", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "estimate", Value: doc.Estimate})
	}

	result, err := r.base.Update(ctx, cartID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cart
	saved.ID = cartID
	saved.UserID = cartID
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Clear empties the cart items and drops the stale estimate. A missing cart
// document counts as already cleared.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}

	updates := []firestore.Update{
		{Path: "items", Value: []cartItemDocument{}},
		{Path: "estimate", Value: firestore.Delete},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	_, err := r.base.Update(ctx, uid, updates)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	return nil
}

func cartDocumentFrom(cart domain.Cart, createdAt, updatedAt time.Time) cartDocument {
	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:     make([]cartItemDocument, 0, len(cart.Items)),
		Metadata:  cloneAnyMap(cart.Metadata),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ID:        strings.TrimSpace(item.ID),
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Currency:  strings.ToUpper(strings.TrimSpace(item.Currency)),
			ImagePath: strings.TrimSpace(item.ImagePath),
			Metadata:  cloneAnyMap(item.Metadata),
			AddedAt:   item.AddedAt.UTC(),
			UpdatedAt: item.UpdatedAt,
		})
	}
	if cart.Estimate != nil {
		doc.Estimate = &quoteDocument{
			Subtotal: cart.Estimate.Subtotal,
			Shipping: cart.Estimate.Shipping,
			Tax:      cart.Estimate.Tax,
			Discount: cart.Estimate.Discount,
			CODFee:   cart.Estimate.CODFee,
			Total:    cart.Estimate.Total,
		}
	}
	return doc
}

func cartFromDocument(doc pfirestore.Document[cartDocument]) domain.Cart {
	cart := domain.Cart{
		ID:       doc.ID,
		UserID:   doc.ID,
		Currency: strings.ToUpper(strings.TrimSpace(doc.Data.Currency)),
		Items:    make([]domain.CartItem, 0, len(doc.Data.Items)),
		Metadata: cloneAnyMap(doc.Data.Metadata),
	}
	for _, item := range doc.Data.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Currency:  item.Currency,
			ImagePath: item.ImagePath,
			Metadata:  cloneAnyMap(item.Metadata),
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	if doc.Data.Estimate != nil {
		cart.Estimate = &domain.Quote{
			Subtotal: doc.Data.Estimate.Subtotal,
			Shipping: doc.Data.Estimate.Shipping,
			Tax:      doc.Data.Estimate.Tax,
			Discount: doc.Data.Estimate.Discount,
			CODFee:   doc.Data.Estimate.CODFee,
			Total:    doc.Data.Estimate.Total,
		}
	}

	cart.CreatedAt = doc.Data.CreatedAt
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = doc.CreateTime
	}
	cart.UpdatedAt = doc.UpdateTime
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.Data.UpdatedAt
	}
	return cart
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Items     []cartItemDocument `firestore:"items"`
	Estimate  *quoteDocument     `firestore:"estimate,omitempty"`
	Metadata  map[string]any     `firestore:"metadata,omitempty"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID        string         `firestore:"id"`
	ProductID string         `firestore:"productId"`
	Name      string         `firestore:"name"`
	UnitPrice int64          `firestore:"unitPrice"`
	Quantity  int            `firestore:"quantity"`
	Currency  string         `firestore:"currency,omitempty"`
	ImagePath string         `firestore:"imagePath,omitempty"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	AddedAt   time.Time      `firestore:"addedAt"`
	UpdatedAt *time.Time     `firestore:"updatedAt,omitempty"`
}

type quoteDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Shipping int64 `firestore:"shipping"`
	Tax      int64 `firestore:"tax"`
	Discount int64 `firestore:"discount"`
	CODFee   int64 `firestore:"codFee"`
	Total    int64 `firestore:"total"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
