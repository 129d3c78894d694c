package routes

import (
	"net/http"

	"github.com/dukerupert/ponto/internal/handler/admin"
	"github.com/dukerupert/ponto/internal/handler/storefront"
	"github.com/dukerupert/ponto/internal/handler/webhook"
	"github.com/dukerupert/ponto/internal/middleware"
)

// StorefrontDeps contains dependencies for the public API routes
type StorefrontDeps struct {
	// Catalog
	ProductListHandler   *storefront.ProductListHandler
	ProductDetailHandler *storefront.ProductDetailHandler
	CategoryListHandler  *storefront.CategoryListHandler

	// Checkout and orders
	QuoteHandler      *storefront.QuoteHandler
	PlaceOrderHandler *storefront.PlaceOrderHandler
	TrackHandler      *storefront.TrackHandler

	// Customer sessions
	AuthHandler *storefront.AuthHandler

	// RateLimiter guards login, quote and tracking. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	// Auth
	LoginHandler *admin.LoginHandler
	MeHandler    *admin.MeHandler

	// Orders and delivery
	OrderHandler *admin.OrderHandler

	// Products and categories
	CatalogHandler *admin.CatalogHandler

	// Settings
	SettingsHandler *admin.SettingsHandler

	// RateLimiter guards login. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	PaymentHandler *webhook.PaymentHandler
}

// OpsDeps contains the health and metrics endpoints.
type OpsDeps struct {
	HealthHandler  http.Handler
	MetricsHandler http.Handler
}
