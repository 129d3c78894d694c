package storefront

import (
	"context"
	"net/http"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/service"
)

// OrderPlacer creates customer orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, principal *domain.Principal, req service.PlaceOrderRequest) (*domain.Order, error)
}

// Tracker looks an order up by number and email.
type Tracker interface {
	Track(ctx context.Context, orderNumber, email string, principal *domain.Principal) (*service.TrackingResult, error)
}

type placeOrderRequest struct {
	Items    []lineItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Notes    string            `json:"notes" validate:"max=1000"`
	Currency string            `json:"currency" validate:"omitempty,len=3,alpha"`
}

// PlaceOrderHandler serves POST /api/orders.
type PlaceOrderHandler struct {
	orders OrderPlacer
}

// NewPlaceOrderHandler creates an order placement handler.
func NewPlaceOrderHandler(orders OrderPlacer) *PlaceOrderHandler {
	return &PlaceOrderHandler{orders: orders}
}

// ServeHTTP places an order for the signed-in customer.
func (h *PlaceOrderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		handler.ErrorResponse(w, r, domain.ErrSessionRequired)
		return
	}

	var req placeOrderRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), principal, service.PlaceOrderRequest{
		Items:    toLineItems(req.Items),
		Notes:    req.Notes,
		Currency: req.Currency,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.TotalAmount.String(),
	)
	handler.WriteJSON(w, http.StatusCreated, order)
}

type trackRequest struct {
	OrderNumber string `json:"orderNumber" validate:"required,max=64"`
	Email       string `json:"email" validate:"required,email,max=254"`
}

// TrackHandler serves POST /api/orders/track. No session is required;
// the order number and email pair proves ownership.
type TrackHandler struct {
	tracker Tracker
}

// NewTrackHandler creates an order tracking handler.
func NewTrackHandler(tracker Tracker) *TrackHandler {
	return &TrackHandler{tracker: tracker}
}

func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.tracker.Track(r.Context(), req.OrderNumber, req.Email, domain.PrincipalFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, result)
}
