package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/payment"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/shopspring/decimal"
)

// LineItem is a product and quantity requested at checkout.
type LineItem struct {
	ProductID string
	Quantity  int
}

// QuoteRequest asks which payment options apply to a checkout.
type QuoteRequest struct {
	Items                []LineItem
	Amount               *decimal.Decimal
	Profile              payment.Profile
	HasApprovedCredit    bool
	CreditLimitRemaining *decimal.Decimal
	IsFirstPurchase      bool
	IsRecurringCharge    bool
}

// Quote is the resolved checkout quote.
type Quote struct {
	Amount  decimal.Decimal        `json:"amount"`
	Profile payment.Profile        `json:"profile"`
	Policy  payment.ResolvedPolicy `json:"policy"`
}

// PolicySource supplies the current payment policy configuration.
type PolicySource interface {
	PolicyConfig(ctx context.Context) (payment.PolicyConfig, error)
}

// CheckoutService prices carts and resolves the payment policy for them.
type CheckoutService struct {
	catalog  CatalogStore
	policies PolicySource
	logger   *slog.Logger
	metrics  *telemetry.BusinessMetrics
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(catalog CatalogStore, policies PolicySource, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *CheckoutService {
	return &CheckoutService{
		catalog:  catalog,
		policies: policies,
		logger:   logger,
		metrics:  metrics,
	}
}

// Quote computes the amount from catalog prices when items are given and
// from req.Amount otherwise, then resolves the payment policy for it.
func (s *CheckoutService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	const op = "checkout.quote"

	if req.Profile != payment.ProfileB2C && req.Profile != payment.ProfileB2B {
		return nil, domain.NewValidationError(op, "profile", "must be one of B2C B2B")
	}

	var amount decimal.Decimal
	if len(req.Items) > 0 {
		total, _, err := s.PriceItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		amount = total
	} else if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, domain.Invalid(op, "invalid amount")
	}
	if req.CreditLimitRemaining != nil && req.CreditLimitRemaining.IsNegative() {
		return nil, domain.NewValidationError(op, "creditLimitRemaining", "must not be negative")
	}

	cfg, err := s.policies.PolicyConfig(ctx)
	if err != nil {
		return nil, err
	}

	policy := payment.ResolvePolicy(payment.CheckoutContext{
		Profile:              req.Profile,
		Amount:               amount,
		HasApprovedCredit:    req.HasApprovedCredit,
		CreditLimitRemaining: req.CreditLimitRemaining,
		IsFirstPurchase:      req.IsFirstPurchase,
		IsRecurringCharge:    req.IsRecurringCharge,
	}, cfg)

	s.metrics.RecordQuote(string(req.Profile), policy.InvoiceAvailable)
	s.logger.DebugContext(ctx, "checkout quote resolved",
		"profile", req.Profile,
		"amount", amount.String(),
		"methods", len(policy.Methods),
		"invoice", policy.InvoiceAvailable,
	)

	return &Quote{Amount: amount, Profile: req.Profile, Policy: policy}, nil
}

// PriceItems totals items at current catalog prices and snapshots them as
// order lines. Unknown or inactive products are validation errors.
func (s *CheckoutService) PriceItems(ctx context.Context, items []LineItem) (decimal.Decimal, []domain.OrderItem, error) {
	const op = "checkout.priceItems"

	if len(items) == 0 {
		return decimal.Zero, nil, domain.ErrEmptyOrder
	}

	total := decimal.Zero
	lines := make([]domain.OrderItem, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if item.Quantity < 1 {
			return decimal.Zero, nil, domain.NewValidationError(op, field+".quantity", "must be at least 1")
		}

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return decimal.Zero, nil, domain.NewValidationError(op, field+".productId", "unknown product")
			}
			return decimal.Zero, nil, err
		}
		if !product.Active {
			return decimal.Zero, nil, domain.NewValidationError(op, field+".productId", "product is not available")
		}

		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, domain.OrderItem{
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	return total, lines, nil
}
