package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the business-facing lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// ParseOrderStatus parses s case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range OrderStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// PaymentStatus is the state of the payment transaction as reported by a provider.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusExpired    PaymentStatus = "EXPIRED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// PaymentStatuses lists the canonical payment statuses.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusProcessing,
	PaymentStatusFailed,
	PaymentStatusExpired,
	PaymentStatusRefunded,
}

// Order-related errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "order not found"}
	ErrOrderNumberTaken        = &Error{Code: ECONFLICT, Message: "order number already allocated"}
	ErrDuplicateIdempotencyKey = &Error{Code: ECONFLICT, Message: "payment event already recorded"}
	ErrPaymentAttemptNotFound  = &Error{Code: ENOTFOUND, Message: "payment attempt not found"}
	ErrNothingToUpdate         = &Error{Code: ENOOP, Message: "no delivery field to update"}
	ErrDeliveryUpdateForbidden = &Error{Code: EFORBIDDEN, Message: "only super-admins can edit delivery details"}
	ErrEmptyOrder              = &Error{Code: EINVALID, Message: "order must contain at least one item"}
)

// Order is the persisted order with its current, denormalized payment state.
// The history behind PaymentStatus lives in PaymentAttempt rows.
type Order struct {
	ID                  string          `json:"id"`
	OrderNumber         string          `json:"orderNumber"`
	UserID              *string         `json:"userId"`
	Email               string          `json:"email"`
	Status              OrderStatus     `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	PaymentReference    *string         `json:"paymentReference"`
	ProviderPaymentID   *string         `json:"providerPaymentId"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	Currency            string          `json:"currency"`
	Notes               *string         `json:"notes"`
	DeliveryDescription *string         `json:"deliveryDescription"`
	ShippingMethod      *string         `json:"shippingMethod"`
	TrackingCode        *string         `json:"trackingCode"`
	ShippedAt           *time.Time      `json:"shippedAt"`
	DeliveredAt         *time.Time      `json:"deliveredAt"`
	PaidAt              *time.Time      `json:"paidAt"`
	PaymentError        *string         `json:"paymentError"`
	Items               []OrderItem     `json:"items,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// OrderItem snapshots a product line at the time the order was placed.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PaymentAttempt is an immutable record of one payment-provider event
// applied to an order.
type PaymentAttempt struct {
	ID             string           `json:"id"`
	OrderID        string           `json:"orderId"`
	Provider       string           `json:"provider"`
	EventType      string           `json:"eventType"`
	Status         PaymentStatus    `json:"status"`
	ExternalID     *string          `json:"externalId"`
	IdempotencyKey string           `json:"idempotencyKey"`
	Amount         *decimal.Decimal `json:"amount"`
	Currency       *string          `json:"currency"`
	Payload        json.RawMessage  `json:"payload"`
	ErrorMessage   *string          `json:"errorMessage"`
	ProcessedAt    time.Time        `json:"processedAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// OrderListParams filters the admin order list.
type OrderListParams struct {
	Status OrderStatus
	Limit  int
	Offset int
}
