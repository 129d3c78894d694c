package routes

import (
	"github.com/dukerupert/ponto/internal/router"
)

// RegisterWebhookRoutes registers the payment webhook routes.
//
// Note: Webhook routes do NOT have authentication middleware. The Stripe
// route verifies the Stripe-Signature header when a secret is configured.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Handle("POST", "/webhooks/payments", deps.PaymentHandler)
	r.Handle("POST", "/webhooks/payments/{provider}", deps.PaymentHandler)
}

// RegisterOpsRoutes registers the health check and Prometheus endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Handle("GET", "/healthz", deps.HealthHandler)
	r.Handle("GET", "/metrics", deps.MetricsHandler)
}
