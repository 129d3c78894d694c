package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

const stripeProvider = "STRIPE"

// stripeStatuses maps the Stripe event types we reconcile to a payment
// status. A payment intent's own status vocabulary differs from ours, so
// the event type decides.
var stripeStatuses = map[stripe.EventType]domain.PaymentStatus{
	"payment_intent.succeeded":      domain.PaymentStatusPaid,
	"payment_intent.processing":     domain.PaymentStatusProcessing,
	"payment_intent.payment_failed": domain.PaymentStatusFailed,
	"payment_intent.canceled":       domain.PaymentStatusFailed,
	"charge.refunded":               domain.PaymentStatusRefunded,
}

// errStripeEventSkipped marks a verified Stripe event we do not reconcile.
var errStripeEventSkipped = errors.New("stripe event type not reconciled")

// stripeEvent verifies and translates a native Stripe event. Orders are
// matched by the payment intent id or by metadata.order_id.
func (h *PaymentHandler) stripeEvent(r *http.Request, payload []byte) (service.WebhookEvent, error) {
	const op = "webhook.stripe"

	if h.config.StripeWebhookSecret != "" {
		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			return service.WebhookEvent{}, domain.Unauthorized(op, "Missing signature")
		}
		if err := webhook.ValidatePayload(payload, signature, h.config.StripeWebhookSecret); err != nil {
			return service.WebhookEvent{}, domain.Unauthorized(op, "Invalid signature")
		}
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" || event.Data == nil {
		return service.WebhookEvent{}, domain.Invalid(op, "invalid Stripe event")
	}

	status, ok := stripeStatuses[event.Type]
	if !ok {
		return service.WebhookEvent{}, errStripeEventSkipped
	}

	ev := service.WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Provider:  stripeProvider,
		Status:    string(status),
		Raw:       json.RawMessage(payload),
	}

	if event.Type == "charge.refunded" {
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return service.WebhookEvent{}, domain.Invalid(op, "invalid charge")
		}
		if ch.PaymentIntent != nil {
			ev.ProviderPaymentID = ch.PaymentIntent.ID
		}
		ev.OrderID = ch.Metadata["order_id"]
		ev.Amount = minorUnits(ch.AmountRefunded)
		ev.Currency = strings.ToUpper(string(ch.Currency))
		return ev, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return service.WebhookEvent{}, domain.Invalid(op, "invalid payment intent")
	}
	ev.ProviderPaymentID = pi.ID
	ev.OrderID = pi.Metadata["order_id"]
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	ev.Amount = minorUnits(amount)
	ev.Currency = strings.ToUpper(string(pi.Currency))
	if pi.LastPaymentError != nil {
		ev.Message = pi.LastPaymentError.Msg
	}
	return ev, nil
}

// minorUnits converts a Stripe amount in cents into a decimal amount.
func minorUnits(amount int64) *decimal.Decimal {
	if amount == 0 {
		return nil
	}
	d := decimal.New(amount, -2)
	return &d
}
