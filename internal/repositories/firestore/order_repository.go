package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/velour-beauty/api/internal/domain"
	pfirestore "github.com/velour-beauty/api/internal/platform/firestore"
	"github.com/velour-beauty/api/internal/platform/pagination"
	"github.com/velour-beauty/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders and their lifecycle transitions in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
	}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	doc := orderDocumentFrom(order)
	result, err := ref.Create(ctx, doc)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}

	saved := order
	saved.CreatedAt = doc.CreatedAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID loads an order by its document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc), nil
}

// ListByUser returns the user's orders, most recent first, with cursor paging.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: user id is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: %w", err)
		}
		if len(cursor.StartAfter) == 2 {
			startAfter = cursor.StartAfter
		}
	}

	statuses := normaliseStatuses(filter.Statuses)
	direction := firestore.Desc
	if filter.SortOrder == domain.SortAsc {
		direction = firestore.Asc
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", uid)

		if len(statuses) == 1 {
			q = q.Where("status", "==", statuses[0])
		} else if len(statuses) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statuses) > 10 {
				statuses = statuses[:10]
			}
			q = q.Where("status", "in", statuses)
		}

		q = q.OrderBy("createdAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		cursorTime := last.Data.CreatedAt
		if cursorTime.IsZero() {
			cursorTime = last.CreateTime
		}
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{cursorTime.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: %w", err)
		}
		nextToken = token
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, orderFromDocument(doc))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus applies a status transition and the associated timestamps.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	appendTimeUpdate := func(path string, value *time.Time) {
		if value != nil && !value.IsZero() {
			updates = append(updates, firestore.Update{Path: path, Value: value.UTC()})
		}
	}
	appendTimeUpdate("placedAt", update.PlacedAt)
	appendTimeUpdate("shippedAt", update.ShippedAt)
	appendTimeUpdate("deliveredAt", update.DeliveredAt)
	appendTimeUpdate("cancelledAt", update.CancelledAt)
	appendTimeUpdate("refundedAt", update.RefundedAt)

	if update.CancelReason != nil {
		updates = append(updates, firestore.Update{Path: "cancelReason", Value: strings.TrimSpace(*update.CancelReason)})
	}
	if update.Payment != nil {
		updates = append(updates, firestore.Update{Path: "payment", Value: orderPaymentDocumentFrom(update.Payment)})
	}

	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, id)
}

func normaliseStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, 0, len(statuses))
	seen := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		value := strings.ToLower(strings.TrimSpace(string(status)))
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func orderDocumentFrom(order domain.Order) orderDocument {
	now := time.Now().UTC()
	createdAt := order.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := orderDocument{
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		UserID:      strings.TrimSpace(order.UserID),
		Status:      strings.ToLower(strings.TrimSpace(string(order.Status))),
		Currency:    strings.ToUpper(strings.TrimSpace(order.Currency)),
		Items:       make([]orderLineItemDocument, 0, len(order.Items)),
		Totals: quoteDocument{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Discount: order.Totals.Discount,
			CODFee:   order.Totals.CODFee,
			Total:    order.Totals.Total,
		},
		Shipping: shippingInfoDocument{
			FirstName: order.ShippingInfo.FirstName,
			LastName:  order.ShippingInfo.LastName,
			Email:     order.ShippingInfo.Email,
			Phone:     order.ShippingInfo.Phone,
			Address:   order.ShippingInfo.Address,
			City:      order.ShippingInfo.City,
			State:     order.ShippingInfo.State,
			Zip:       order.ShippingInfo.Zip,
			Country:   order.ShippingInfo.Country,
		},
		Delivery:     string(order.Delivery),
		Payment:      string(order.Payment),
		PaymentRef:   orderPaymentDocumentFrom(order.PaymentRef),
		GiftMessage:  strings.TrimSpace(order.GiftMessage),
		OrderNotes:   strings.TrimSpace(order.OrderNotes),
		Metadata:     cloneAnyMap(order.Metadata),
		CreatedAt:    createdAt,
		UpdatedAt:    now,
		PlacedAt:     order.PlacedAt,
		ShippedAt:    order.ShippedAt,
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
		RefundedAt:   order.RefundedAt,
		CancelReason: order.CancelReason,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderLineItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
			ImagePath: item.ImagePath,
		})
	}
	return doc
}

func orderFromDocument(doc pfirestore.Document[orderDocument]) domain.Order {
	order := domain.Order{
		ID:          doc.ID,
		OrderNumber: doc.Data.OrderNumber,
		UserID:      doc.Data.UserID,
		Status:      domain.OrderStatus(doc.Data.Status),
		Currency:    doc.Data.Currency,
		Items:       make([]domain.OrderLineItem, 0, len(doc.Data.Items)),
		Totals: domain.Quote{
			Subtotal: doc.Data.Totals.Subtotal,
			Shipping: doc.Data.Totals.Shipping,
			Tax:      doc.Data.Totals.Tax,
			Discount: doc.Data.Totals.Discount,
			CODFee:   doc.Data.Totals.CODFee,
			Total:    doc.Data.Totals.Total,
		},
		ShippingInfo: domain.ShippingInfo{
			FirstName: doc.Data.Shipping.FirstName,
			LastName:  doc.Data.Shipping.LastName,
			Email:     doc.Data.Shipping.Email,
			Phone:     doc.Data.Shipping.Phone,
			Address:   doc.Data.Shipping.Address,
			City:      doc.Data.Shipping.City,
			State:     doc.Data.Shipping.State,
			Zip:       doc.Data.Shipping.Zip,
			Country:   doc.Data.Shipping.Country,
		},
		Delivery:     domain.DeliveryMethod(doc.Data.Delivery),
		Payment:      domain.PaymentMethod(doc.Data.Payment),
		GiftMessage:  doc.Data.GiftMessage,
		OrderNotes:   doc.Data.OrderNotes,
		Metadata:     cloneAnyMap(doc.Data.Metadata),
		PlacedAt:     doc.Data.PlacedAt,
		ShippedAt:    doc.Data.ShippedAt,
		DeliveredAt:  doc.Data.DeliveredAt,
		CancelledAt:  doc.Data.CancelledAt,
		RefundedAt:   doc.Data.RefundedAt,
		CancelReason: doc.Data.CancelReason,
	}
	for _, item := range doc.Data.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
			ImagePath: item.ImagePath,
		})
	}
	if doc.Data.PaymentRef != nil {
		order.PaymentRef = &domain.OrderPayment{
			Provider:  doc.Data.PaymentRef.Provider,
			IntentID:  doc.Data.PaymentRef.IntentID,
			Status:    doc.Data.PaymentRef.Status,
			Amount:    doc.Data.PaymentRef.Amount,
			Currency:  doc.Data.PaymentRef.Currency,
			CreatedAt: doc.Data.PaymentRef.CreatedAt,
		}
	}

	order.CreatedAt = doc.Data.CreatedAt
	if order.CreatedAt.IsZero() {
		order.CreatedAt = doc.CreateTime
	}
	order.UpdatedAt = doc.UpdateTime
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = doc.Data.UpdatedAt
	}
	return order
}

func orderPaymentDocumentFrom(payment *domain.OrderPayment) *orderPaymentDocument {
	if payment == nil {
		return nil
	}
	return &orderPaymentDocument{
		Provider:  payment.Provider,
		IntentID:  payment.IntentID,
		Status:    payment.Status,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		CreatedAt: payment.CreatedAt,
	}
}

type orderDocument struct {
	OrderNumber  string                  `firestore:"orderNumber"`
	UserID       string                  `firestore:"userId"`
	Status       string                  `firestore:"status"`
	Currency     string                  `firestore:"currency"`
	Items        []orderLineItemDocument `firestore:"items"`
	Totals       quoteDocument           `firestore:"totals"`
	Shipping     shippingInfoDocument    `firestore:"shipping"`
	Delivery     string                  `firestore:"delivery"`
	Payment      string                  `firestore:"payment"`
	PaymentRef   *orderPaymentDocument   `firestore:"paymentRef,omitempty"`
	GiftMessage  string                  `firestore:"giftMessage,omitempty"`
	OrderNotes   string                  `firestore:"orderNotes,omitempty"`
	Metadata     map[string]any          `firestore:"metadata,omitempty"`
	CreatedAt    time.Time               `firestore:"createdAt"`
	UpdatedAt    time.Time               `firestore:"updatedAt"`
	PlacedAt     *time.Time              `firestore:"placedAt,omitempty"`
	ShippedAt    *time.Time              `firestore:"shippedAt,omitempty"`
	DeliveredAt  *time.Time              `firestore:"deliveredAt,omitempty"`
	CancelledAt  *time.Time              `firestore:"cancelledAt,omitempty"`
	RefundedAt   *time.Time              `firestore:"refundedAt,omitempty"`
	CancelReason *string                 `firestore:"cancelReason,omitempty"`
}

type orderLineItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	Total     int64  `firestore:"total"`
	ImagePath string `firestore:"imagePath,omitempty"`
}

type shippingInfoDocument struct {
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Email     string `firestore:"email"`
	Phone     string `firestore:"phone"`
	Address   string `firestore:"address"`
	City      string `firestore:"city"`
	State     string `firestore:"state"`
	Zip       string `firestore:"zip"`
	Country   string `firestore:"country"`
}

type orderPaymentDocument struct {
	Provider  string    `firestore:"provider"`
	IntentID  string    `firestore:"intentId"`
	Status    string    `firestore:"status"`
	Amount    int64     `firestore:"amount"`
	Currency  string    `firestore:"currency"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
