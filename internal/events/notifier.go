package events

import (
	"context"
	"net/url"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/email"
)

// Mailer sends an order notice to a buyer.
type Mailer interface {
	SendOrderNotice(ctx context.Context, to string, notice email.OrderNotice) error
}

// Notifier emails buyers when an order is paid, shipped or delivered.
type Notifier struct {
	mailer  Mailer
	baseURL string
}

// NewNotifier returns a notifier linking to the tracking page under baseURL.
func NewNotifier(mailer Mailer, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

// Keys lists the events the notifier subscribes to.
func (n *Notifier) Keys() []string {
	return []string{domain.EventOrderPaymentUpdated, domain.EventOrderDeliveryUpdated}
}

// Handle sends a notice when the order status moved into PAID, SHIPPED or
// DELIVERED. Other events are ignored.
func (n *Notifier) Handle(ctx context.Context, ev domain.OrderEvent) error {
	if !n.shouldNotify(ev) {
		return nil
	}

	notice := email.OrderNotice{
		OrderNumber: ev.OrderNumber,
		Status:      string(ev.Status),
		TrackURL:    n.trackURL(ev),
		OccurredAt:  ev.OccurredAt,
	}
	if ev.ShippingMethod != nil {
		notice.ShippingMethod = *ev.ShippingMethod
	}
	if ev.TrackingCode != nil {
		notice.TrackingCode = *ev.TrackingCode
	}

	return n.mailer.SendOrderNotice(ctx, ev.Email, notice)
}

func (n *Notifier) shouldNotify(ev domain.OrderEvent) bool {
	if ev.Email == "" || ev.Status == ev.PreviousStatus {
		return false
	}
	switch ev.Key {
	case domain.EventOrderPaymentUpdated:
		return ev.Status == domain.OrderStatusPaid
	case domain.EventOrderDeliveryUpdated:
		return ev.Status == domain.OrderStatusShipped || ev.Status == domain.OrderStatusDelivered
	}
	return false
}

func (n *Notifier) trackURL(ev domain.OrderEvent) string {
	if n.baseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("orderNumber", ev.OrderNumber)
	q.Set("email", ev.Email)
	return n.baseURL + "/track?" + q.Encode()
}
