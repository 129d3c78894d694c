package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/payment"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultProvider is recorded when an event does not name its provider.
const DefaultProvider = "GENERIC"

// WebhookEvent is a validated inbound payment event.
type WebhookEvent struct {
	EventID           string
	EventType         string
	Provider          string
	ProviderPaymentID string
	OrderID           string
	Status            string
	Amount            *decimal.Decimal
	Currency          string
	Message           string

	// Raw is the provider payload stored on the attempt. When empty the
	// event itself is stored.
	Raw json.RawMessage
}

// ReconcileResult is the outcome of one webhook.
type ReconcileResult struct {
	OK               bool          `json:"ok"`
	AlreadyProcessed bool          `json:"alreadyProcessed,omitempty"`
	Ignored          bool          `json:"ignored,omitempty"`
	OrderID          string        `json:"orderId,omitempty"`
	Order            *domain.Order `json:"order,omitempty"`
}

// Reconciler applies payment-provider events to orders exactly once per
// provider event id.
type Reconciler struct {
	store          OrderStore
	events         EventEmitter
	logger         *slog.Logger
	metrics        *telemetry.BusinessMetrics
	requireEventID bool
	now            func() time.Time
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// RequireEventID rejects events without an event id. When false a
	// timestamp is used instead, which does not deduplicate retries.
	RequireEventID bool
}

// NewReconciler creates a Reconciler. events and metrics may be nil.
func NewReconciler(store OrderStore, events EventEmitter, cfg ReconcilerConfig, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Reconciler {
	return &Reconciler{
		store:          store,
		events:         events,
		logger:         logger,
		metrics:        metrics,
		requireEventID: cfg.RequireEventID,
		now:            time.Now,
	}
}

var errAlreadyProcessed = errors.New("payment event already processed")

// HandlePaymentWebhook normalizes ev, deduplicates it by idempotency key and
// applies it to its order. The payment attempt insert and the order update
// commit in one transaction.
func (r *Reconciler) HandlePaymentWebhook(ctx context.Context, ev WebhookEvent) (*ReconcileResult, error) {
	const op = "webhook.reconcile"
	start := r.now()

	provider := strings.ToUpper(strings.TrimSpace(ev.Provider))
	if provider == "" {
		provider = DefaultProvider
	}

	result, err := r.reconcile(ctx, provider, ev)
	if err != nil {
		r.metrics.RecordWebhookFailure(provider, domain.ErrorCode(err))
		if domain.ErrorCode(err) == domain.EINTERNAL {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to reconcile payment event")
		}
		return nil, err
	}

	outcome := "processed"
	switch {
	case result.AlreadyProcessed:
		outcome = "duplicate"
	case result.Ignored:
		outcome = "ignored"
	}
	status := ""
	if result.Order != nil {
		status = string(result.Order.PaymentStatus)
	}
	r.metrics.RecordWebhook(provider, outcome, status, r.now().Sub(start))

	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, provider string, ev WebhookEvent) (*ReconcileResult, error) {
	const op = "webhook.reconcile"

	providerPaymentID := strings.TrimSpace(ev.ProviderPaymentID)
	orderID := strings.TrimSpace(ev.OrderID)
	if providerPaymentID == "" && orderID == "" {
		return nil, domain.NewValidationError(op, "providerPaymentId", "providerPaymentId or orderId is required")
	}

	status, err := payment.NormalizeStatus(ev.Status, ev.EventType)
	if err != nil {
		return nil, err
	}

	eventID := strings.TrimSpace(ev.EventID)
	if eventID == "" {
		if r.requireEventID {
			return nil, domain.NewValidationError(op, "eventId", "is required")
		}
		eventID = fmt.Sprintf("ts-%d", r.now().UnixNano())
		r.logger.WarnContext(ctx, "payment event without id, using timestamp key",
			"provider", provider,
			"event_id", eventID,
		)
	}
	key := provider + ":" + eventID

	existing, err := r.store.GetPaymentAttemptByKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrPaymentAttemptNotFound) {
		return nil, err
	}
	if existing != nil {
		r.logger.InfoContext(ctx, "payment event already processed", "idempotency_key", key)
		return &ReconcileResult{OK: true, AlreadyProcessed: true, OrderID: existing.OrderID}, nil
	}

	order, err := r.findOrder(ctx, providerPaymentID, orderID)
	if err != nil {
		return nil, err
	}

	payload := ev.Raw
	if len(payload) == 0 {
		payload, _ = json.Marshal(webhookSnapshot(provider, eventID, ev))
	}

	var (
		updated  *domain.Order
		previous domain.OrderStatus
		ignored  bool
	)
	err = r.store.InTx(ctx, func(tx OrderTx) error {
		current, err := tx.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		previous = current.Status
		now := r.now().UTC()

		attempt := &domain.PaymentAttempt{
			ID:             uuid.NewString(),
			OrderID:        current.ID,
			Provider:       provider,
			EventType:      ev.EventType,
			Status:         status,
			ExternalID:     optional(providerPaymentID),
			IdempotencyKey: key,
			Amount:         ev.Amount,
			Currency:       optional(strings.ToUpper(strings.TrimSpace(ev.Currency))),
			Payload:        payload,
			ErrorMessage:   optional(ev.Message),
			ProcessedAt:    now,
			CreatedAt:      now,
		}
		if err := tx.InsertPaymentAttempt(ctx, attempt); err != nil {
			if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
				return errAlreadyProcessed
			}
			return err
		}

		if !payment.CanApply(current, status) {
			ignored = true
			updated = current
			return nil
		}

		applyPaymentStatus(current, status, payment.NextOrderStatus(current, status), providerPaymentID, ev.Message, now)
		if err := tx.UpdateOrder(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		r.logger.InfoContext(ctx, "payment event processed concurrently", "idempotency_key", key)
		return &ReconcileResult{OK: true, AlreadyProcessed: true, OrderID: order.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	if ignored {
		r.logger.WarnContext(ctx, "payment event recorded but not applied",
			"idempotency_key", key,
			"order_id", updated.ID,
			"order_status", updated.Status,
			"payment_status", status,
		)
		return &ReconcileResult{OK: true, Ignored: true, OrderID: updated.ID, Order: updated}, nil
	}

	r.logger.InfoContext(ctx, "payment event applied",
		"idempotency_key", key,
		"order_id", updated.ID,
		"order_number", updated.OrderNumber,
		"from", previous,
		"to", updated.Status,
		"payment_status", updated.PaymentStatus,
	)
	if previous != updated.Status {
		r.metrics.RecordStatusChange(string(previous), string(updated.Status), "webhook")
	}
	r.emit(ctx, domain.NewOrderEvent(domain.EventOrderPaymentUpdated, previous, updated, r.now().UTC()))

	return &ReconcileResult{OK: true, OrderID: updated.ID, Order: updated}, nil
}

// findOrder prefers the provider payment id and falls back to the order id.
func (r *Reconciler) findOrder(ctx context.Context, providerPaymentID, orderID string) (*domain.Order, error) {
	if providerPaymentID != "" {
		order, err := r.store.GetOrderByProviderPaymentID(ctx, providerPaymentID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}
	if orderID != "" {
		return r.store.GetOrder(ctx, orderID)
	}
	return nil, domain.ErrOrderNotFound
}

func (r *Reconciler) emit(ctx context.Context, ev domain.OrderEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Emit(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "failed to emit order event", "key", ev.Key, "order_id", ev.OrderID, "error", err)
	}
}

// applyPaymentStatus updates the denormalized payment state on order and
// moves it to orderStatus.
func applyPaymentStatus(order *domain.Order, status domain.PaymentStatus, orderStatus domain.OrderStatus, providerPaymentID, message string, now time.Time) {
	order.PaymentStatus = status
	order.Status = orderStatus
	if status == domain.PaymentStatusPaid && order.PaidAt == nil {
		order.PaidAt = &now
	}
	if status == domain.PaymentStatusFailed {
		msg := strings.TrimSpace(message)
		if msg == "" {
			msg = "payment failed"
		}
		order.PaymentError = &msg
	} else {
		order.PaymentError = nil
	}
	if providerPaymentID != "" && order.ProviderPaymentID == nil {
		order.ProviderPaymentID = &providerPaymentID
	}
	order.UpdatedAt = now
}

func webhookSnapshot(provider, eventID string, ev WebhookEvent) map[string]any {
	snap := map[string]any{
		"provider":  provider,
		"eventId":   eventID,
		"eventType": ev.EventType,
		"status":    ev.Status,
	}
	if ev.ProviderPaymentID != "" {
		snap["providerPaymentId"] = ev.ProviderPaymentID
	}
	if ev.OrderID != "" {
		snap["orderId"] = ev.OrderID
	}
	if ev.Amount != nil {
		snap["amount"] = ev.Amount.String()
	}
	if ev.Message != "" {
		snap["message"] = ev.Message
	}
	return snap
}

// optional returns nil for a blank string.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
