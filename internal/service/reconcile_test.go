package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(store *memStore, events EventEmitter, requireEventID bool) *Reconciler {
	r := NewReconciler(store, events, ReconcilerConfig{RequireEventID: requireEventID}, discardLogger(), nil)
	r.now = func() time.Time { return time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC) }
	return r
}

func seedPendingOrder(store *memStore, id string) {
	store.seedOrder(domain.Order{
		ID:            id,
		OrderNumber:   "PT-2025-000001",
		Email:         "buyer@example.com",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   decimal.RequireFromString("199.90"),
		Currency:      "BRL",
	})
}

func TestReconciler_AppliesPaidEvent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	events := &recordingEmitter{}
	r := newTestReconciler(store, events, true)

	amount := decimal.RequireFromString("199.90")
	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{
		Provider:          "stripe",
		EventID:           "evt_1",
		EventType:         "payment_intent.succeeded",
		Status:            "succeeded",
		ProviderPaymentID: "pi_1",
		OrderID:           "ord_1",
		Amount:            &amount,
		Currency:          "brl",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.AlreadyProcessed)
	assert.False(t, res.Ignored)
	assert.Equal(t, "ord_1", res.OrderID)

	order := store.order("ord_1")
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.PaidAt)
	require.NotNil(t, order.ProviderPaymentID)
	assert.Equal(t, "pi_1", *order.ProviderPaymentID)
	assert.Nil(t, order.PaymentError)

	attempts, err := store.ListPaymentAttempts(ctx, "ord_1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, "STRIPE:evt_1", a.IdempotencyKey)
	assert.Equal(t, "STRIPE", a.Provider)
	assert.Equal(t, domain.PaymentStatusPaid, a.Status)
	require.NotNil(t, a.Currency)
	assert.Equal(t, "BRL", *a.Currency)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(a.Payload, &payload))
	assert.Equal(t, "evt_1", payload["eventId"])
	assert.Equal(t, "199.9", payload["amount"])

	assert.Equal(t, []string{domain.EventOrderPaymentUpdated}, events.keys())
	assert.Equal(t, domain.OrderStatusPending, events.events[0].PreviousStatus)
}

func TestReconciler_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	events := &recordingEmitter{}
	r := newTestReconciler(store, events, true)

	ev := WebhookEvent{Provider: "STRIPE", EventID: "evt_1", Status: "paid", OrderID: "ord_1"}

	_, err := r.HandlePaymentWebhook(ctx, ev)
	require.NoError(t, err)
	paidAt := store.order("ord_1").PaidAt

	res, err := r.HandlePaymentWebhook(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, "ord_1", res.OrderID)

	assert.Equal(t, 1, store.attemptCount())
	assert.Equal(t, paidAt, store.order("ord_1").PaidAt)
	assert.Len(t, events.keys(), 1)
}

func TestReconciler_ConcurrentDuplicateInsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, true)

	ev := WebhookEvent{Provider: "STRIPE", EventID: "evt_1", Status: "paid", OrderID: "ord_1"}
	_, err := r.HandlePaymentWebhook(ctx, ev)
	require.NoError(t, err)

	// The second delivery misses the pre-check and hits the unique key.
	store.hideAttempts = true
	res, err := r.HandlePaymentWebhook(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, 1, store.attemptCount())
}

func TestReconciler_Validation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, true)

	tests := []struct {
		name string
		ev   WebhookEvent
		code string
	}{
		{"no identifiers", WebhookEvent{EventID: "evt_1", Status: "paid"}, domain.EINVALID},
		{"blank identifiers", WebhookEvent{EventID: "evt_1", Status: "paid", OrderID: "  ", ProviderPaymentID: " "}, domain.EINVALID},
		{"missing event id", WebhookEvent{Status: "paid", OrderID: "ord_1"}, domain.EINVALID},
		{"unrecognized status", WebhookEvent{EventID: "evt_1", Status: "weird", EventType: "mystery"}, domain.EINVALID},
		{"unrecognized with order", WebhookEvent{EventID: "evt_2", Status: "weird", EventType: "mystery", OrderID: "ord_1"}, domain.EUNRECOGNIZED},
		{"unknown order", WebhookEvent{EventID: "evt_3", Status: "paid", OrderID: "ord_missing"}, domain.ENOTFOUND},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.HandlePaymentWebhook(ctx, tt.ev)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}

	assert.Equal(t, 0, store.attemptCount())
	assert.Equal(t, domain.OrderStatusPending, store.order("ord_1").Status)
}

func TestReconciler_FindsOrderByProviderPaymentID(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	pi := "pi_known"
	store.seedOrder(domain.Order{ID: "ord_9", OrderNumber: "PT-2025-000009", ProviderPaymentID: &pi})
	r := newTestReconciler(store, nil, true)

	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{
		Provider:          "mercadopago",
		EventID:           "77",
		Status:            "approved",
		ProviderPaymentID: "pi_known",
		OrderID:           "ord_ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord_9", res.OrderID)
	assert.Equal(t, domain.OrderStatusPaid, store.order("ord_9").Status)
}

func TestReconciler_FailedEventRecordsMessage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, true)

	_, err := r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "e1", EventType: "charge.failed", OrderID: "ord_1", Message: "card declined"})
	require.NoError(t, err)

	order := store.order("ord_1")
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)
	require.NotNil(t, order.PaymentError)
	assert.Equal(t, "card declined", *order.PaymentError)

	// A later success clears the error and recovers the order.
	_, err = r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "e2", Status: "paid", OrderID: "ord_1"})
	require.NoError(t, err)
	order = store.order("ord_1")
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Nil(t, order.PaymentError)
}

func TestReconciler_FailedWithoutMessage(t *testing.T) {
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, true)

	_, err := r.HandlePaymentWebhook(context.Background(), WebhookEvent{EventID: "e1", Status: "failed", OrderID: "ord_1"})
	require.NoError(t, err)
	require.NotNil(t, store.order("ord_1").PaymentError)
	assert.Equal(t, "payment failed", *store.order("ord_1").PaymentError)
}

func TestReconciler_GuardedTransitionIsRecordedButIgnored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedOrder(domain.Order{
		ID:            "ord_1",
		OrderNumber:   "PT-2025-000001",
		Status:        domain.OrderStatusShipped,
		PaymentStatus: domain.PaymentStatusPaid,
	})
	events := &recordingEmitter{}
	r := newTestReconciler(store, events, true)

	for _, ev := range []WebhookEvent{
		{EventID: "late-fail", Status: "failed", OrderID: "ord_1"},
		{EventID: "late-pending", Status: "pending", OrderID: "ord_1"},
	} {
		res, err := r.HandlePaymentWebhook(ctx, ev)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.True(t, res.Ignored, ev.EventID)
	}

	order := store.order("ord_1")
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, 2, store.attemptCount())
	assert.Empty(t, events.keys())

	// Refunds always apply.
	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "refund", EventType: "charge.refunded", OrderID: "ord_1"})
	require.NoError(t, err)
	assert.False(t, res.Ignored)
	assert.Equal(t, domain.OrderStatusRefunded, store.order("ord_1").Status)
}

func TestReconciler_PaidAfterStaffMovedOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedOrder(domain.Order{
		ID:            "ord_1",
		OrderNumber:   "PT-2025-000001",
		Email:         "buyer@example.com",
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusPending,
	})
	events := &recordingEmitter{}
	r := newTestReconciler(store, events, true)

	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{
		Provider: "stripe",
		EventID:  "evt_9",
		OrderID:  "ord_1",
		Status:   "PAID",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.Ignored)

	order := store.order("ord_1")
	assert.Equal(t, domain.OrderStatusProcessing, order.Status, "staff progress is kept")
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC), *order.PaidAt)
	assert.Nil(t, order.PaymentError)
	assert.Equal(t, []string{domain.EventOrderPaymentUpdated}, events.keys())
}

func TestReconciler_RefundedPaymentIsFinal(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedOrder(domain.Order{
		ID:            "ord_1",
		OrderNumber:   "PT-2025-000001",
		Status:        domain.OrderStatusRefunded,
		PaymentStatus: domain.PaymentStatusRefunded,
	})
	r := newTestReconciler(store, nil, true)

	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "late-paid", Status: "paid", OrderID: "ord_1"})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, domain.PaymentStatusRefunded, store.order("ord_1").PaymentStatus)
	assert.Nil(t, store.order("ord_1").PaidAt)
	assert.Equal(t, 1, store.attemptCount())
}

func TestReconciler_MissingEventIDWhenOptional(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, false)

	res, err := r.HandlePaymentWebhook(ctx, WebhookEvent{Status: "processing", OrderID: "ord_1"})
	require.NoError(t, err)
	assert.True(t, res.OK)

	attempts, err := store.ListPaymentAttempts(ctx, "ord_1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Regexp(t, `^GENERIC:ts-\d+$`, attempts[0].IdempotencyKey)

	order := store.order("ord_1")
	assert.Equal(t, domain.PaymentStatusProcessing, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestReconciler_StoresRawPayload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	r := newTestReconciler(store, nil, true)

	raw := json.RawMessage(`{"id":"evt_raw","object":"event"}`)
	_, err := r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "evt_raw", Status: "paid", OrderID: "ord_1", Raw: raw})
	require.NoError(t, err)

	attempts, err := store.ListPaymentAttempts(ctx, "ord_1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.JSONEq(t, string(raw), string(attempts[0].Payload))
}

func TestReconciler_UpdateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "ord_1")
	store.updateOrderErr = assert.AnError
	r := newTestReconciler(store, nil, true)

	_, err := r.HandlePaymentWebhook(ctx, WebhookEvent{EventID: "evt_1", Status: "paid", OrderID: "ord_1"})
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Equal(t, 0, store.attemptCount())
	assert.Equal(t, domain.OrderStatusPending, store.order("ord_1").Status)
}
