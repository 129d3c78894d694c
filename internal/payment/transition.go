package payment

import (
	"slices"

	"github.com/dukerupert/ponto/internal/domain"
)

// paymentTransitions lists, per target, the order statuses a payment event
// may move an order out of. Providers deliver out of order, so a late FAILED
// must not cancel an order that already shipped and nothing leaves REFUNDED.
var paymentTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPaid: {
		domain.OrderStatusPending,
		domain.OrderStatusCancelled,
		domain.OrderStatusPaid,
	},
	domain.OrderStatusCancelled: {
		domain.OrderStatusPending,
		domain.OrderStatusCancelled,
	},
	domain.OrderStatusRefunded: {
		domain.OrderStatusPending,
		domain.OrderStatusPaid,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	},
}

// CanTransition reports whether a payment event may move an order from
// one status to another.
func CanTransition(from, to domain.OrderStatus) bool {
	return slices.Contains(paymentTransitions[to], from)
}

// CanApply reports whether an event carrying status next may update the
// payment state of order. A refunded payment is final, and a paid one only
// moves on to REFUNDED or is confirmed again. The order status is decided
// separately by NextOrderStatus.
func CanApply(order *domain.Order, next domain.PaymentStatus) bool {
	switch order.PaymentStatus {
	case domain.PaymentStatusRefunded:
		return false
	case domain.PaymentStatusPaid:
		return next == domain.PaymentStatusPaid || next == domain.PaymentStatusRefunded
	}
	return true
}

// NextOrderStatus returns the status order takes after a payment event
// carrying next. The order keeps its status when the event maps to none
// or the move is not allowed, e.g. a payment confirmed after staff already
// moved the order to PROCESSING or SHIPPED.
func NextOrderStatus(order *domain.Order, next domain.PaymentStatus) domain.OrderStatus {
	if to, ok := MapPaymentStatusToOrderStatus(next); ok && CanTransition(order.Status, to) {
		return to
	}
	return order.Status
}
