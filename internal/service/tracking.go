package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/shopspring/decimal"
)

// TrackingSummary is the guest-visible view of an order.
type TrackingSummary struct {
	OrderNumber         string               `json:"orderNumber"`
	Status              domain.OrderStatus   `json:"status"`
	PaymentStatus       domain.PaymentStatus `json:"paymentStatus"`
	TotalAmount         decimal.Decimal      `json:"totalAmount"`
	Currency            string               `json:"currency"`
	DeliveryDescription *string              `json:"deliveryDescription"`
	ShippingMethod      *string              `json:"shippingMethod"`
	TrackingCode        *string              `json:"trackingCode"`
	ShippedAt           *time.Time           `json:"shippedAt"`
	DeliveredAt         *time.Time           `json:"deliveredAt"`
	PaidAt              *time.Time           `json:"paidAt"`
	CreatedAt           time.Time            `json:"createdAt"`
	Items               []TrackingItem       `json:"items"`
}

// TrackingItem is one order line in a tracking summary.
type TrackingItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// TrackingPermissions tells the caller what it may do with the order.
type TrackingPermissions struct {
	CanEditDelivery bool `json:"canEditDelivery"`
}

// TrackingResult is returned by Track.
type TrackingResult struct {
	OrderID     string              `json:"orderId,omitempty"`
	Order       TrackingSummary     `json:"order"`
	Permissions TrackingPermissions `json:"permissions"`
}

// TrackingService looks orders up by order number and email.
type TrackingService struct {
	store   OrderStore
	authz   DeliveryAuthorizer
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

// NewTrackingService creates a TrackingService.
func NewTrackingService(store OrderStore, authz DeliveryAuthorizer, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *TrackingService {
	return &TrackingService{store: store, authz: authz, logger: logger, metrics: metrics}
}

// Track returns the order whose number and email both match. Any mismatch
// is reported as not found so order numbers cannot be enumerated.
// principal is optional; it only affects Permissions.
func (s *TrackingService) Track(ctx context.Context, orderNumber, email string, principal *domain.Principal) (*TrackingResult, error) {
	const op = "tracking.lookup"

	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	email = domain.NormalizeEmail(email)
	if orderNumber == "" {
		return nil, domain.NewValidationError(op, "orderNumber", "is required")
	}
	if email == "" {
		return nil, domain.NewValidationError(op, "email", "is required")
	}

	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}
	if order == nil || domain.NormalizeEmail(order.Email) != email {
		s.metrics.RecordTrackingLookup(false)
		return nil, domain.ErrOrderNotFound
	}
	s.metrics.RecordTrackingLookup(true)

	canEdit := principal != nil && s.authz.CanEditDelivery(principal)
	result := &TrackingResult{
		Order:       summarize(order),
		Permissions: TrackingPermissions{CanEditDelivery: canEdit},
	}
	if canEdit {
		// Super-admins need the id to call the delivery endpoint.
		result.OrderID = order.ID
	}
	return result, nil
}

func summarize(o *domain.Order) TrackingSummary {
	items := make([]TrackingItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = TrackingItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return TrackingSummary{
		OrderNumber:         o.OrderNumber,
		Status:              o.Status,
		PaymentStatus:       o.PaymentStatus,
		TotalAmount:         o.TotalAmount,
		Currency:            o.Currency,
		DeliveryDescription: o.DeliveryDescription,
		ShippingMethod:      o.ShippingMethod,
		TrackingCode:        o.TrackingCode,
		ShippedAt:           o.ShippedAt,
		DeliveredAt:         o.DeliveredAt,
		PaidAt:              o.PaidAt,
		CreatedAt:           o.CreatedAt,
		Items:               items,
	}
}
