package payment

import (
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
)

// statusAliases maps provider vocabulary onto canonical payment statuses.
var statusAliases = map[string]domain.PaymentStatus{
	"PAID":                    domain.PaymentStatusPaid,
	"SUCCEEDED":               domain.PaymentStatusPaid,
	"SUCCESS":                 domain.PaymentStatusPaid,
	"APPROVED":                domain.PaymentStatusPaid,
	"CAPTURED":                domain.PaymentStatusPaid,
	"COMPLETED":               domain.PaymentStatusPaid,
	"CONFIRMED":               domain.PaymentStatusPaid,
	"RECEIVED":                domain.PaymentStatusPaid,
	"PROCESSING":              domain.PaymentStatusProcessing,
	"IN_PROCESS":              domain.PaymentStatusProcessing,
	"AUTHORIZED":              domain.PaymentStatusProcessing,
	"REQUIRES_CAPTURE":        domain.PaymentStatusProcessing,
	"PENDING":                 domain.PaymentStatusPending,
	"WAITING_PAYMENT":         domain.PaymentStatusPending,
	"REQUIRES_PAYMENT_METHOD": domain.PaymentStatusPending,
	"FAILED":                  domain.PaymentStatusFailed,
	"FAILURE":                 domain.PaymentStatusFailed,
	"DECLINED":                domain.PaymentStatusFailed,
	"REJECTED":                domain.PaymentStatusFailed,
	"CANCELED":                domain.PaymentStatusFailed,
	"CANCELLED":               domain.PaymentStatusFailed,
	"EXPIRED":                 domain.PaymentStatusExpired,
	"OVERDUE":                 domain.PaymentStatusExpired,
	"REFUNDED":                domain.PaymentStatusRefunded,
	"CHARGED_BACK":            domain.PaymentStatusRefunded,
	"CHARGEBACK":              domain.PaymentStatusRefunded,
}

// eventKeywords is checked in order against the lower-cased event type.
var eventKeywords = []struct {
	substr string
	status domain.PaymentStatus
}{
	{"succeeded", domain.PaymentStatusPaid},
	{"paid", domain.PaymentStatusPaid},
	{"refund", domain.PaymentStatusRefunded},
	{"expired", domain.PaymentStatusExpired},
	{"fail", domain.PaymentStatusFailed},
	{"process", domain.PaymentStatusProcessing},
}

// NormalizeStatus maps a provider status string, falling back to keywords
// in the event type, onto a canonical PaymentStatus. Both inputs are
// matched case-insensitively. It returns an EUNRECOGNIZED error when
// neither yields a match.
func NormalizeStatus(status, eventType string) (domain.PaymentStatus, error) {
	key := strings.ToUpper(strings.TrimSpace(status))
	key = strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(key)
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}

	et := strings.ToLower(eventType)
	for _, kw := range eventKeywords {
		if strings.Contains(et, kw.substr) {
			return kw.status, nil
		}
	}

	return "", domain.Errorf(domain.EUNRECOGNIZED, "payment.normalizeStatus",
		"unrecognized payment status %q (event type %q)", status, eventType)
}

// MapPaymentStatusToOrderStatus returns the order status implied by a
// payment status. ok is false for PENDING and PROCESSING, which leave the
// order status unchanged.
func MapPaymentStatusToOrderStatus(s domain.PaymentStatus) (status domain.OrderStatus, ok bool) {
	switch s {
	case domain.PaymentStatusPaid:
		return domain.OrderStatusPaid, true
	case domain.PaymentStatusRefunded:
		return domain.OrderStatusRefunded, true
	case domain.PaymentStatusFailed, domain.PaymentStatusExpired:
		return domain.OrderStatusCancelled, true
	default:
		return "", false
	}
}
