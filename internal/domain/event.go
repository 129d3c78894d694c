package domain

import "time"

// Order event keys.
const (
	EventOrderCreated         = "order.created"
	EventOrderPaymentUpdated  = "order.payment_updated"
	EventOrderDeliveryUpdated = "order.delivery_updated"
)

// OrderEvent is emitted after an order change has been committed.
type OrderEvent struct {
	Key            string        `json:"key"`
	OrderID        string        `json:"orderId"`
	OrderNumber    string        `json:"orderNumber"`
	Email          string        `json:"email"`
	PreviousStatus OrderStatus   `json:"previousStatus"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	TrackingCode   *string       `json:"trackingCode,omitempty"`
	ShippingMethod *string       `json:"shippingMethod,omitempty"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

// NewOrderEvent snapshots order under key.
func NewOrderEvent(key string, previous OrderStatus, order *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Key:            key,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Email:          order.Email,
		PreviousStatus: previous,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		TrackingCode:   order.TrackingCode,
		ShippingMethod: order.ShippingMethod,
		OccurredAt:     at,
	}
}
