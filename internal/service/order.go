package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/telemetry"
)

// DefaultCurrency is used when an order does not name one.
const DefaultCurrency = "BRL"

// PlaceOrderRequest is a customer order.
type PlaceOrderRequest struct {
	Items    []LineItem
	Notes    string
	Currency string
}

// OrderService places orders and serves order reads for the admin surface.
type OrderService struct {
	store     OrderStore
	checkout  *CheckoutService
	allocator *OrderNumberAllocator
	events    EventEmitter
	logger    *slog.Logger
	metrics   *telemetry.BusinessMetrics
	now       func() time.Time
}

// NewOrderService creates an OrderService. events and metrics may be nil.
func NewOrderService(store OrderStore, checkout *CheckoutService, allocator *OrderNumberAllocator, events EventEmitter, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *OrderService {
	return &OrderService{
		store:     store,
		checkout:  checkout,
		allocator: allocator,
		events:    events,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// PlaceOrder prices the items from the catalog and stores a PENDING order
// for principal under a freshly allocated order number.
func (s *OrderService) PlaceOrder(ctx context.Context, principal *domain.Principal, req PlaceOrderRequest) (*domain.Order, error) {
	const op = "order.place"

	if principal == nil {
		return nil, domain.ErrSessionRequired
	}

	total, lines, err := s.checkout.PriceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, domain.NewValidationError(op, "currency", "must be a 3-letter code")
	}

	userID := principal.ID
	order := &domain.Order{
		UserID:        &userID,
		Email:         domain.NormalizeEmail(principal.Email),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   total,
		Currency:      currency,
		Notes:         optional(truncateRunes(strings.TrimSpace(req.Notes), MaxDeliveryDescriptionLen)),
		Items:         lines,
	}

	number, err := s.allocator.Allocate(ctx, func(number string) error {
		order.OrderNumber = number
		return s.store.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	f, _ := total.Float64()
	s.metrics.RecordOrderCreated(currency, f)
	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"order_number", number,
		"user_id", userID,
		"total", total.String(),
		"items", len(lines),
	)

	if s.events != nil {
		ev := domain.NewOrderEvent(domain.EventOrderCreated, "", order, s.now().UTC())
		if err := s.events.Emit(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "failed to emit order event", "key", ev.Key, "order_id", ev.OrderID, "error", err)
		}
	}

	return order, nil
}

// GetOrder returns an order by id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// ListOrders returns a page of orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, params domain.OrderListParams) ([]domain.Order, error) {
	if params.Status != "" {
		if _, ok := domain.ParseOrderStatus(string(params.Status)); !ok {
			return nil, domain.NewValidationError("order.list", "status", "must be one of "+allowedStatuses())
		}
	}
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return s.store.ListOrders(ctx, params)
}

// ListPaymentAttempts returns the payment history of an order, oldest first.
func (s *OrderService) ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentAttempts(ctx, orderID)
}
