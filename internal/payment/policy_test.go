package payment_test

import (
	"testing"

	"github.com/dukerupert/ponto/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func b2b(amount string) payment.CheckoutContext {
	return payment.CheckoutContext{
		Profile:           payment.ProfileB2B,
		Amount:            dec(amount),
		HasApprovedCredit: true,
	}
}

func TestResolvePolicy_Defaults(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()

	got := payment.ResolvePolicy(payment.CheckoutContext{Profile: payment.ProfileB2C, Amount: dec("500")}, cfg)

	assert.Equal(t, []payment.Method{payment.MethodPix, payment.MethodCreditCard, payment.MethodBoleto}, got.Methods)
	assert.Equal(t, 12, got.MaxInstallments)
	assert.Equal(t, 3, got.NoInterestInstallments)
	assert.False(t, got.InvoiceAvailable, "B2C never gets invoicing")
	assert.Empty(t, got.InvoiceTermsDays)
}

func TestResolvePolicy_B2BInvoiceGating(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.B2BInvoiceMinAmount = dec("1000")

	tests := []struct {
		name        string
		ctx         payment.CheckoutContext
		wantInvoice bool
	}{
		{
			name:        "approved credit with unknown limit",
			ctx:         b2b("1500"),
			wantInvoice: true,
		},
		{
			name: "no approved credit",
			ctx: func() payment.CheckoutContext {
				c := b2b("1500")
				c.HasApprovedCredit = false
				return c
			}(),
			wantInvoice: false,
		},
		{
			name: "limit below amount",
			ctx: func() payment.CheckoutContext {
				c := b2b("1500")
				c.CreditLimitRemaining = decPtr("1499.99")
				return c
			}(),
			wantInvoice: false,
		},
		{
			name: "limit equal to amount",
			ctx: func() payment.CheckoutContext {
				c := b2b("1500")
				c.CreditLimitRemaining = decPtr("1500")
				return c
			}(),
			wantInvoice: true,
		},
		{
			name:        "amount below invoice minimum",
			ctx:         b2b("999.99"),
			wantInvoice: false,
		},
		{
			name: "first purchase not allowed by default",
			ctx: func() payment.CheckoutContext {
				c := b2b("1500")
				c.IsFirstPurchase = true
				return c
			}(),
			wantInvoice: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := payment.ResolvePolicy(tt.ctx, cfg)

			assert.Equal(t, tt.wantInvoice, got.InvoiceAvailable)
			assert.Equal(t, tt.wantInvoice, containsMethod(got.Methods, payment.MethodB2BInvoice))
			if tt.wantInvoice {
				assert.Equal(t, []int{30, 60, 90}, got.InvoiceTermsDays)
			} else {
				assert.Empty(t, got.InvoiceTermsDays)
			}
		})
	}
}

func TestResolvePolicy_FirstPurchaseAllowedByConfig(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.AllowInvoiceOnFirstPurchase = true

	ctx := b2b("200")
	ctx.IsFirstPurchase = true

	got := payment.ResolvePolicy(ctx, cfg)
	assert.True(t, got.InvoiceAvailable)
}

func TestResolvePolicy_NoTermsMeansNoInvoice(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.B2BInvoiceTermsDays = []int{}

	got := payment.ResolvePolicy(b2b("200"), cfg)
	assert.False(t, got.InvoiceAvailable)
	assert.NotContains(t, got.Methods, payment.MethodB2BInvoice)
}

func TestResolvePolicy_InstallmentTiers(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.MaxInstallments = 10
	cfg.NoInterestInstallments = 4
	cfg.InstallmentTiers = []payment.InstallmentTier{
		{MinAmount: dec("100"), MaxInstallments: 3},
		{MinAmount: dec("1000"), MaxInstallments: 6},
		{MinAmount: dec("5000"), MaxInstallments: 18},
	}

	tests := []struct {
		amount         string
		wantMax        int
		wantNoInterest int
	}{
		{"50", 10, 4},
		{"100", 3, 3},
		{"999.99", 3, 3},
		{"1000", 6, 4},
		{"8000", 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := payment.ResolvePolicy(payment.CheckoutContext{Profile: payment.ProfileB2C, Amount: dec(tt.amount)}, cfg)
			assert.Equal(t, tt.wantMax, got.MaxInstallments)
			assert.Equal(t, tt.wantNoInterest, got.NoInterestInstallments)
		})
	}
}

func TestResolvePolicy_RecurringCharge(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	ctx := payment.CheckoutContext{Profile: payment.ProfileB2C, Amount: dec("900"), IsRecurringCharge: true}

	got := payment.ResolvePolicy(ctx, cfg)
	assert.Equal(t, 1, got.MaxInstallments)
	assert.Equal(t, 1, got.NoInterestInstallments)

	cfg.AllowInstallmentsOnRecurring = true
	got = payment.ResolvePolicy(ctx, cfg)
	assert.Equal(t, 12, got.MaxInstallments)
}

func TestResolvePolicy_NoCardMeansNoInstallments(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.EnabledMethods = []payment.Method{payment.MethodPix, payment.MethodBoleto}

	got := payment.ResolvePolicy(payment.CheckoutContext{Profile: payment.ProfileB2C, Amount: dec("900")}, cfg)
	assert.Equal(t, 1, got.MaxInstallments)
	assert.Equal(t, 0, got.NoInterestInstallments)
}

func TestResolvePolicy_EmptyResultIsValid(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.EnabledMethods = []payment.Method{payment.MethodB2BInvoice}

	got := payment.ResolvePolicy(payment.CheckoutContext{Profile: payment.ProfileB2C, Amount: dec("10")}, cfg)
	assert.NotNil(t, got.Methods)
	assert.Empty(t, got.Methods)
}

func TestResolvePolicy_OrderFollowsConfig(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	cfg.EnabledMethods = []payment.Method{payment.MethodB2BInvoice, payment.MethodBoleto, payment.MethodCreditCard, payment.MethodPix}

	ctx := b2b("300")
	first := payment.ResolvePolicy(ctx, cfg)
	for range 20 {
		assert.Equal(t, first, payment.ResolvePolicy(ctx, cfg), "resolution must be deterministic")
	}
	assert.Equal(t, cfg.EnabledMethods, first.Methods)
}

func TestResolvePolicy_DoesNotAliasConfigTerms(t *testing.T) {
	cfg := payment.DefaultPolicyConfig()
	got := payment.ResolvePolicy(b2b("300"), cfg)
	got.InvoiceTermsDays[0] = 999

	assert.Equal(t, 30, cfg.B2BInvoiceTermsDays[0])
}

func containsMethod(methods []payment.Method, m payment.Method) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}
