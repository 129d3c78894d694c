package routes

import (
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/router"
)

// RegisterStorefrontRoutes registers the public JSON API.
//
// Catalog reads, quotes and tracking are open to guests. Placing an order
// requires a customer session.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Catalog
	r.Get("/api/products", deps.ProductListHandler.ServeHTTP)
	r.Get("/api/products/{slug}", deps.ProductDetailHandler.ServeHTTP)
	r.Get("/api/categories", deps.CategoryListHandler.ServeHTTP)

	// Endpoints that do work per request or check credentials are rate limited
	limited := r.Group(rateLimited(deps.RateLimiter)...)
	limited.Post("/api/checkout/quote", deps.QuoteHandler.ServeHTTP)
	limited.Post("/api/orders/track", deps.TrackHandler.ServeHTTP)
	limited.Post("/api/auth/login", deps.AuthHandler.HandleLogin)
	limited.Post("/api/auth/register", deps.AuthHandler.HandleRegister)

	r.Post("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Customer routes (require authentication)
	account := r.Group(middleware.RequireAuth, middleware.RequireJSONForCookieSessions)
	account.Post("/api/orders", deps.PlaceOrderHandler.ServeHTTP)
}

func rateLimited(rl *middleware.RateLimiter) []router.Middleware {
	if rl == nil {
		return nil
	}
	return []router.Middleware{rl.Middleware}
}
