package handlers

import (
	domain "github.com/velour-beauty/api/internal/domain"
)

type quotePayload struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	CODFee   int64 `json:"codFee"`
	Total    int64 `json:"total"`
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Currency  string `json:"currency,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`
	AddedAt   string `json:"addedAt,omitempty"`
}

type cartPayload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Currency  string            `json:"currency"`
	Items     []cartItemPayload `json:"items"`
	Estimate  *quotePayload     `json:"estimate,omitempty"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

type shippingInfoPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
	ImagePath string `json:"imagePath,omitempty"`
}

type orderPaymentPayload struct {
	Provider string `json:"provider"`
	IntentID string `json:"intentId"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type orderPayload struct {
	ID           string               `json:"id"`
	OrderNumber  string               `json:"orderNumber"`
	Status       string               `json:"status"`
	Currency     string               `json:"currency"`
	Items        []orderItemPayload   `json:"items"`
	Totals       quotePayload         `json:"totals"`
	Shipping     shippingInfoPayload  `json:"shipping"`
	Delivery     string               `json:"delivery"`
	Payment      string               `json:"payment"`
	PaymentRef   *orderPaymentPayload `json:"paymentRef,omitempty"`
	GiftMessage  string               `json:"giftMessage,omitempty"`
	OrderNotes   string               `json:"orderNotes,omitempty"`
	CreatedAt    string               `json:"createdAt"`
	PlacedAt     string               `json:"placedAt,omitempty"`
	ShippedAt    string               `json:"shippedAt,omitempty"`
	DeliveredAt  string               `json:"deliveredAt,omitempty"`
	CancelledAt  string               `json:"cancelledAt,omitempty"`
	RefundedAt   string               `json:"refundedAt,omitempty"`
	CancelReason string               `json:"cancelReason,omitempty"`
}

func buildQuotePayload(quote domain.Quote) quotePayload {
	return quotePayload{
		Subtotal: quote.Subtotal,
		Shipping: quote.Shipping,
		Tax:      quote.Tax,
		Discount: quote.Discount,
		CODFee:   quote.CODFee,
		Total:    quote.Total,
	}
}

func buildCartPayload(cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Currency:  item.Currency,
			ImagePath: item.ImagePath,
			AddedAt:   formatTime(item.AddedAt),
		})
	}

	payload := cartPayload{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Currency:  cart.Currency,
		Items:     items,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	if cart.Estimate != nil {
		estimate := buildQuotePayload(*cart.Estimate)
		payload.Estimate = &estimate
	}
	return payload
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
			ImagePath: item.ImagePath,
		})
	}

	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Currency:    order.Currency,
		Items:       items,
		Totals:      buildQuotePayload(order.Totals),
		Shipping: shippingInfoPayload{
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
		Delivery:    string(order.Delivery),
		Payment:     string(order.Payment),
		GiftMessage: order.GiftMessage,
		OrderNotes:  order.OrderNotes,
		CreatedAt:   formatTime(order.CreatedAt),
		PlacedAt:    formatTimePtr(order.PlacedAt),
		ShippedAt:   formatTimePtr(order.ShippedAt),
		DeliveredAt: formatTimePtr(order.DeliveredAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
		RefundedAt:  formatTimePtr(order.RefundedAt),
	}
	if order.PaymentRef != nil {
		payload.PaymentRef = &orderPaymentPayload{
			Provider: order.PaymentRef.Provider,
			IntentID: order.PaymentRef.IntentID,
			Status:   order.PaymentRef.Status,
			Amount:   order.PaymentRef.Amount,
			Currency: order.PaymentRef.Currency,
		}
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	return payload
}
