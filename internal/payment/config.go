package payment

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/shopspring/decimal"
)

// Setting keys persisted in payment_settings.
const (
	KeyEnabledMethods         = "payment.enabled_methods"
	KeyMaxInstallments        = "payment.max_installments"
	KeyNoInterestInstallments = "payment.no_interest_installments"
	KeyInvoiceTermsDays       = "payment.b2b_invoice_terms_days"
	KeyInvoiceMinAmount       = "payment.b2b_invoice_min_amount"
	KeyInstallmentTiers       = "payment.installment_tiers"
	KeyInvoiceFirstPurchase   = "payment.allow_invoice_first_purchase"
	KeyInstallmentsRecurring  = "payment.allow_installments_recurring"
)

// SettingsPrefix selects every payment key.
const SettingsPrefix = "payment."

// SettingKeys lists the keys ParsePolicyConfig understands.
var SettingKeys = []string{
	KeyEnabledMethods,
	KeyMaxInstallments,
	KeyNoInterestInstallments,
	KeyInvoiceTermsDays,
	KeyInvoiceMinAmount,
	KeyInstallmentTiers,
	KeyInvoiceFirstPurchase,
	KeyInstallmentsRecurring,
}

// IsSettingKey reports whether key is a known payment setting.
func IsSettingKey(key string) bool {
	return slices.Contains(SettingKeys, key)
}

// ParsePolicyConfig builds a normalized PolicyConfig from stored settings.
// Missing keys keep their defaults; a stored blank method or term list
// disables those methods. Every malformed value is
// reported as a field of one *domain.ValidationError.
func ParsePolicyConfig(settings map[string]string) (PolicyConfig, error) {
	const op = "payment.parseConfig"

	cfg := DefaultPolicyConfig()
	verr := &domain.ValidationError{Op: op, Fields: map[string]string{}}
	fail := func(key string, format string, args ...any) {
		verr.Fields[key] = fmt.Sprintf(format, args...)
	}

	if raw, ok := lookup(settings, KeyEnabledMethods); ok {
		cfg.EnabledMethods = parseMethods(raw)
	} else if _, present := settings[KeyEnabledMethods]; present {
		cfg.EnabledMethods = []Method{}
	}

	if raw, ok := lookup(settings, KeyMaxInstallments); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(KeyMaxInstallments, "must be an integer")
		} else {
			cfg.MaxInstallments = n
		}
	}

	if raw, ok := lookup(settings, KeyNoInterestInstallments); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(KeyNoInterestInstallments, "must be an integer")
		} else {
			cfg.NoInterestInstallments = n
		}
	}

	if raw, ok := lookup(settings, KeyInvoiceTermsDays); ok {
		terms, err := parseTerms(raw)
		if err != nil {
			fail(KeyInvoiceTermsDays, "%v", err)
		} else {
			cfg.B2BInvoiceTermsDays = terms
		}
	} else if _, present := settings[KeyInvoiceTermsDays]; present {
		// Stored but blank: invoicing is switched off.
		cfg.B2BInvoiceTermsDays = []int{}
	}

	if raw, ok := lookup(settings, KeyInvoiceMinAmount); ok {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			fail(KeyInvoiceMinAmount, "must be a non-negative decimal")
		} else {
			cfg.B2BInvoiceMinAmount = d
		}
	}

	if raw, ok := lookup(settings, KeyInstallmentTiers); ok {
		tiers, err := parseTiers(raw)
		if err != nil {
			fail(KeyInstallmentTiers, "%v", err)
		} else {
			cfg.InstallmentTiers = tiers
		}
	}

	if raw, ok := lookup(settings, KeyInvoiceFirstPurchase); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fail(KeyInvoiceFirstPurchase, "must be true or false")
		} else {
			cfg.AllowInvoiceOnFirstPurchase = b
		}
	}

	if raw, ok := lookup(settings, KeyInstallmentsRecurring); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fail(KeyInstallmentsRecurring, "must be true or false")
		} else {
			cfg.AllowInstallmentsOnRecurring = b
		}
	}

	if len(verr.Fields) > 0 {
		return PolicyConfig{}, verr
	}

	cfg.MaxInstallments = max(cfg.MaxInstallments, 1)
	cfg.NoInterestInstallments = min(max(cfg.NoInterestInstallments, 0), cfg.MaxInstallments)
	return cfg, nil
}

// Encode renders cfg back into setting values, the inverse of ParsePolicyConfig.
func (cfg PolicyConfig) Encode() map[string]string {
	methods := make([]string, len(cfg.EnabledMethods))
	for i, m := range cfg.EnabledMethods {
		methods[i] = string(m)
	}
	terms := make([]string, len(cfg.B2BInvoiceTermsDays))
	for i, d := range cfg.B2BInvoiceTermsDays {
		terms[i] = strconv.Itoa(d)
	}
	tiers := make([]string, len(cfg.InstallmentTiers))
	for i, t := range cfg.InstallmentTiers {
		tiers[i] = t.MinAmount.String() + ":" + strconv.Itoa(t.MaxInstallments)
	}

	return map[string]string{
		KeyEnabledMethods:         strings.Join(methods, ","),
		KeyMaxInstallments:        strconv.Itoa(cfg.MaxInstallments),
		KeyNoInterestInstallments: strconv.Itoa(cfg.NoInterestInstallments),
		KeyInvoiceTermsDays:       strings.Join(terms, ","),
		KeyInvoiceMinAmount:       cfg.B2BInvoiceMinAmount.String(),
		KeyInstallmentTiers:       strings.Join(tiers, ","),
		KeyInvoiceFirstPurchase:   strconv.FormatBool(cfg.AllowInvoiceOnFirstPurchase),
		KeyInstallmentsRecurring:  strconv.FormatBool(cfg.AllowInstallmentsOnRecurring),
	}
}

func lookup(settings map[string]string, key string) (string, bool) {
	raw, ok := settings[key]
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMethods upper-cases and dedupes, keeping first-seen order.
func parseMethods(raw string) []Method {
	methods := []Method{}
	for _, part := range splitCSV(raw) {
		m := Method(strings.ToUpper(part))
		if !slices.Contains(methods, m) {
			methods = append(methods, m)
		}
	}
	return methods
}

func parseTerms(raw string) ([]int, error) {
	terms := []int{}
	for _, part := range splitCSV(raw) {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid term %q: must be a positive integer", part)
		}
		if !slices.Contains(terms, n) {
			terms = append(terms, n)
		}
	}
	slices.Sort(terms)
	return terms, nil
}

func parseTiers(raw string) ([]InstallmentTier, error) {
	var tiers []InstallmentTier
	for _, part := range splitCSV(raw) {
		amount, count, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid tier %q: want amount:installments", part)
		}
		minAmount, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil || minAmount.IsNegative() {
			return nil, fmt.Errorf("invalid tier amount %q", amount)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid tier installments %q", count)
		}
		tiers = append(tiers, InstallmentTier{MinAmount: minAmount, MaxInstallments: n})
	}
	slices.SortStableFunc(tiers, func(a, b InstallmentTier) int {
		return a.MinAmount.Cmp(b.MinAmount)
	})
	return tiers, nil
}
