package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
// All recording methods are safe on a nil receiver so services can run
// without metrics in tests.
type BusinessMetrics struct {
	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookDuplicate *prometheus.CounterVec
	WebhookIgnored   *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Orders
	OrdersCreated        *prometheus.CounterVec
	OrderValue           prometheus.Histogram
	OrderStatusChanges   *prometheus.CounterVec
	OrderNumberConflicts prometheus.Counter
	DeliveryUpdates      *prometheus.CounterVec
	TrackingLookups      *prometheus.CounterVec

	// Checkout
	QuotesResolved *prometheus.CounterVec

	// Auth
	Logins      prometheus.Counter
	LoginFailed prometheus.Counter
}

// NewBusinessMetrics registers the business metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "ponto"
	}

	subsystem := "business"
	factory := promauto.With(reg)

	return &BusinessMetrics{
		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Payment webhooks received",
			},
			[]string{"provider"},
		),
		WebhookProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Payment webhooks applied to an order",
			},
			[]string{"provider", "payment_status"},
		),
		WebhookDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duplicate_total",
				Help:      "Payment webhooks skipped because the event was already processed",
			},
			[]string{"provider"},
		),
		WebhookIgnored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_ignored_total",
				Help:      "Payment webhooks recorded but not applied because the transition is not allowed",
			},
			[]string{"provider", "payment_status"},
		),
		WebhookFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Payment webhooks rejected or failed",
			},
			[]string{"provider", "reason"}, // reason: error code
		),
		WebhookLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Payment webhook reconciliation duration",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"provider"},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Orders placed",
			},
			[]string{"currency"},
		),
		OrderValue: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value",
				Help:      "Order total amount",
				Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
			},
		),
		OrderStatusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_status_changes_total",
				Help:      "Order status transitions",
			},
			[]string{"from", "to", "source"}, // source: webhook, delivery
		),
		OrderNumberConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_number_conflicts_total",
				Help:      "Order number allocations retried after a unique violation",
			},
		),
		DeliveryUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "delivery_updates_total",
				Help:      "Delivery updates by outcome",
			},
			[]string{"outcome"},
		),
		TrackingLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tracking_lookups_total",
				Help:      "Guest order tracking lookups",
			},
			[]string{"result"}, // result: found, not_found
		),

		// =======================================================================
		// Checkout
		// =======================================================================
		QuotesResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_quotes_total",
				Help:      "Checkout quotes resolved",
			},
			[]string{"profile", "invoice_available"},
		),

		// =======================================================================
		// Auth
		// =======================================================================
		Logins: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "logins_total",
				Help:      "Successful admin logins",
			},
		),
		LoginFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "login_failed_total",
				Help:      "Failed admin logins",
			},
		),
	}
}

// RecordWebhook records the outcome of one reconciled webhook.
// outcome is one of "processed", "duplicate", "ignored".
func (m *BusinessMetrics) RecordWebhook(provider, outcome, paymentStatus string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(provider).Inc()
	m.WebhookLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	switch outcome {
	case "processed":
		m.WebhookProcessed.WithLabelValues(provider, paymentStatus).Inc()
	case "duplicate":
		m.WebhookDuplicate.WithLabelValues(provider).Inc()
	case "ignored":
		m.WebhookIgnored.WithLabelValues(provider, paymentStatus).Inc()
	}
}

// RecordWebhookFailure records a rejected or failed webhook.
func (m *BusinessMetrics) RecordWebhookFailure(provider, reason string) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(provider).Inc()
	m.WebhookFailed.WithLabelValues(provider, reason).Inc()
}

// RecordStatusChange records an order status transition.
func (m *BusinessMetrics) RecordStatusChange(from, to, source string) {
	if m == nil || from == to {
		return
	}
	m.OrderStatusChanges.WithLabelValues(from, to, source).Inc()
}

// RecordOrderCreated records a placed order.
func (m *BusinessMetrics) RecordOrderCreated(currency string, total float64) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(currency).Inc()
	m.OrderValue.Observe(total)
}

// RecordOrderNumberConflict records one allocation retry.
func (m *BusinessMetrics) RecordOrderNumberConflict() {
	if m == nil {
		return
	}
	m.OrderNumberConflicts.Inc()
}

// RecordDeliveryUpdate records a delivery update outcome.
func (m *BusinessMetrics) RecordDeliveryUpdate(outcome string) {
	if m == nil {
		return
	}
	m.DeliveryUpdates.WithLabelValues(outcome).Inc()
}

// RecordTrackingLookup records a tracking lookup.
func (m *BusinessMetrics) RecordTrackingLookup(found bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "found"
	}
	m.TrackingLookups.WithLabelValues(result).Inc()
}

// RecordQuote records a resolved checkout quote.
func (m *BusinessMetrics) RecordQuote(profile string, invoiceAvailable bool) {
	if m == nil {
		return
	}
	invoice := "false"
	if invoiceAvailable {
		invoice = "true"
	}
	m.QuotesResolved.WithLabelValues(profile, invoice).Inc()
}

// RecordLogin records an admin login attempt.
func (m *BusinessMetrics) RecordLogin(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Logins.Inc()
		return
	}
	m.LoginFailed.Inc()
}
