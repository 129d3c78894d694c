package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/service"
)

// OrderReader serves the admin order views.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, params domain.OrderListParams) ([]domain.Order, error)
	ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error)
}

// DeliveryUpdater edits delivery and tracking details.
type DeliveryUpdater interface {
	UpdateDelivery(ctx context.Context, orderID string, principal *domain.Principal, patch service.DeliveryPatch) (*domain.Order, error)
}

// OrderHandler handles the admin order routes.
type OrderHandler struct {
	orders   OrderReader
	delivery DeliveryUpdater
}

// NewOrderHandler creates an admin order handler.
func NewOrderHandler(orders OrderReader, delivery DeliveryUpdater) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		delivery: delivery,
	}
}

// List handles GET /admin/api/orders?status=&limit=&offset=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := handler.QueryInt(r, "limit", 50)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	offset, err := handler.QueryInt(r, "offset", 0)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))

	orders, err := h.orders.ListOrders(r.Context(), domain.OrderListParams{
		Status: domain.OrderStatus(status),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

// Detail handles GET /admin/api/orders/{id}
func (h *OrderHandler) Detail(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// Attempts handles GET /admin/api/orders/{id}/payments
func (h *OrderHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.orders.ListPaymentAttempts(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []domain.PaymentAttempt{}
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// UpdateDelivery handles PATCH /admin/api/orders/{id}/delivery. Absent
// fields are left alone and null clears a field.
func (h *OrderHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var patch service.DeliveryPatch
	if err := handler.DecodeJSON(r, &patch); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.delivery.UpdateDelivery(r.Context(), r.PathValue("id"), domain.PrincipalFromContext(r.Context()), patch)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, order)
}
