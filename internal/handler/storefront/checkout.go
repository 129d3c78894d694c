// Package storefront serves the public JSON API: catalog, checkout quotes,
// order placement, order tracking and customer sessions.
package storefront

import (
	"context"
	"net/http"

	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/payment"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/shopspring/decimal"
)

// Quoter resolves the payment options for a checkout.
type Quoter interface {
	Quote(ctx context.Context, req service.QuoteRequest) (*service.Quote, error)
}

type lineItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"min=1,max=1000"`
}

func toLineItems(items []lineItemRequest) []service.LineItem {
	out := make([]service.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, service.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

type quoteRequest struct {
	Items                []lineItemRequest `json:"items" validate:"max=100,dive"`
	Amount               *decimal.Decimal  `json:"amount"`
	Profile              string            `json:"profile" validate:"required,oneof=B2C B2B"`
	HasApprovedCredit    bool              `json:"hasApprovedCredit"`
	CreditLimitRemaining *decimal.Decimal  `json:"creditLimitRemaining"`
	IsFirstPurchase      bool              `json:"isFirstPurchase"`
	IsRecurringCharge    bool              `json:"isRecurringCharge"`
}

// QuoteHandler serves POST /api/checkout/quote.
type QuoteHandler struct {
	quoter Quoter
}

// NewQuoteHandler creates a checkout quote handler.
func NewQuoteHandler(quoter Quoter) *QuoteHandler {
	return &QuoteHandler{quoter: quoter}
}

// ServeHTTP prices the cart, or takes the given amount when the cart is
// empty, and returns the payment policy that applies to it.
func (h *QuoteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	quote, err := h.quoter.Quote(r.Context(), service.QuoteRequest{
		Items:                toLineItems(req.Items),
		Amount:               req.Amount,
		Profile:              payment.Profile(req.Profile),
		HasApprovedCredit:    req.HasApprovedCredit,
		CreditLimitRemaining: req.CreditLimitRemaining,
		IsFirstPurchase:      req.IsFirstPurchase,
		IsRecurringCharge:    req.IsRecurringCharge,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, quote)
}
