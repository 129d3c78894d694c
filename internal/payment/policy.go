// Package payment holds the pure payment rules: which methods a checkout may
// use, how provider statuses are normalized, and how a payment status moves
// an order. Nothing in this package performs I/O.
package payment

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Method identifies a payment method offered at checkout.
type Method string

const (
	MethodPix        Method = "PIX"
	MethodCreditCard Method = "CREDIT_CARD"
	MethodBoleto     Method = "BOLETO"
	MethodB2BInvoice Method = "B2B_INVOICE"
)

// Profile is the checkout profile.
type Profile string

const (
	ProfileB2C Profile = "B2C"
	ProfileB2B Profile = "B2B"
)

// CheckoutContext describes one checkout for policy resolution.
// Amount must be positive; callers validate before resolving.
type CheckoutContext struct {
	Profile              Profile
	Amount               decimal.Decimal
	HasApprovedCredit    bool
	CreditLimitRemaining *decimal.Decimal // nil means unknown or unlimited
	IsFirstPurchase      bool
	IsRecurringCharge    bool
}

// InstallmentTier caps installments for amounts at or above MinAmount.
type InstallmentTier struct {
	MinAmount       decimal.Decimal `json:"minAmount"`
	MaxInstallments int             `json:"maxInstallments"`
}

// PolicyConfig is the normalized payment policy loaded from settings.
type PolicyConfig struct {
	EnabledMethods               []Method          `json:"enabledMethods"`
	MaxInstallments              int               `json:"maxInstallments"`
	NoInterestInstallments       int               `json:"noInterestInstallments"`
	B2BInvoiceTermsDays          []int             `json:"b2bInvoiceTermsDays"`
	B2BInvoiceMinAmount          decimal.Decimal   `json:"b2bInvoiceMinAmount"`
	InstallmentTiers             []InstallmentTier `json:"installmentTiers"`
	AllowInvoiceOnFirstPurchase  bool              `json:"allowInvoiceOnFirstPurchase"`
	AllowInstallmentsOnRecurring bool              `json:"allowInstallmentsOnRecurring"`
}

// ResolvedPolicy is what a specific checkout may use.
type ResolvedPolicy struct {
	Methods                []Method `json:"methods"`
	MaxInstallments        int      `json:"maxInstallments"`
	NoInterestInstallments int      `json:"noInterestInstallments"`
	InvoiceAvailable       bool     `json:"invoiceAvailable"`
	InvoiceTermsDays       []int    `json:"invoiceTermsDays"`
}

// DefaultPolicyConfig is used for every setting that has not been stored.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		EnabledMethods:         []Method{MethodPix, MethodCreditCard, MethodBoleto, MethodB2BInvoice},
		MaxInstallments:        12,
		NoInterestInstallments: 3,
		B2BInvoiceTermsDays:    []int{30, 60, 90},
		B2BInvoiceMinAmount:    decimal.Zero,
	}
}

// ResolvePolicy computes the payment options for ctx under cfg.
//
// The result is deterministic and methods keep the order of
// cfg.EnabledMethods. An empty method list is a valid result.
func ResolvePolicy(ctx CheckoutContext, cfg PolicyConfig) ResolvedPolicy {
	invoice := invoiceAllowed(ctx, cfg)

	methods := make([]Method, 0, len(cfg.EnabledMethods))
	for _, m := range cfg.EnabledMethods {
		if m == MethodB2BInvoice && !invoice {
			continue
		}
		methods = append(methods, m)
	}

	maxInst, noInterest := 1, 0
	if slices.Contains(methods, MethodCreditCard) {
		maxInst = installmentCap(ctx, cfg)
		noInterest = min(max(cfg.NoInterestInstallments, 0), maxInst)
	}

	resolved := ResolvedPolicy{
		Methods:                methods,
		MaxInstallments:        maxInst,
		NoInterestInstallments: noInterest,
		InvoiceAvailable:       invoice,
		InvoiceTermsDays:       []int{},
	}
	if invoice {
		resolved.InvoiceTermsDays = slices.Clone(cfg.B2BInvoiceTermsDays)
	}
	return resolved
}

func invoiceAllowed(ctx CheckoutContext, cfg PolicyConfig) bool {
	if ctx.Profile != ProfileB2B {
		return false
	}
	if len(cfg.B2BInvoiceTermsDays) == 0 || !slices.Contains(cfg.EnabledMethods, MethodB2BInvoice) {
		return false
	}
	if !ctx.HasApprovedCredit {
		return false
	}
	if ctx.CreditLimitRemaining != nil && ctx.CreditLimitRemaining.LessThan(ctx.Amount) {
		return false
	}
	if ctx.Amount.LessThan(cfg.B2BInvoiceMinAmount) {
		return false
	}
	if ctx.IsFirstPurchase && !cfg.AllowInvoiceOnFirstPurchase {
		return false
	}
	return true
}

func installmentCap(ctx CheckoutContext, cfg PolicyConfig) int {
	if ctx.IsRecurringCharge && !cfg.AllowInstallmentsOnRecurring {
		return 1
	}

	limit := max(cfg.MaxInstallments, 1)
	if len(cfg.InstallmentTiers) == 0 {
		return limit
	}

	// Highest tier whose threshold the amount reaches. Tiers are sorted by
	// MinAmount ascending after parsing, but do not rely on it here. An
	// amount below every tier is capped by MaxInstallments alone.
	tier, matched := 0, false
	var best decimal.Decimal
	for _, t := range cfg.InstallmentTiers {
		if ctx.Amount.LessThan(t.MinAmount) {
			continue
		}
		if !matched || t.MinAmount.GreaterThan(best) {
			best, tier, matched = t.MinAmount, t.MaxInstallments, true
		}
	}
	if !matched {
		return limit
	}
	return max(min(limit, tier), 1)
}
