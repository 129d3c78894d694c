package routes

import (
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/router"
)

// RegisterAdminRoutes registers the back-office routes. Everything except
// login requires a staff session, and cookie sessions must send JSON so a
// cross-site form cannot drive a state change.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	r.Post("/admin/login", deps.LoginHandler.HandleSubmit, rateLimited(deps.RateLimiter)...)

	admin := r.Group(middleware.RequireStaff, middleware.RequireJSONForCookieSessions)
	admin.Post("/admin/logout", deps.LoginHandler.HandleLogout)
	admin.Get("/admin/api/me", deps.MeHandler.ServeHTTP)

	// Order management
	admin.Get("/admin/api/orders", deps.OrderHandler.List)
	admin.Get("/admin/api/orders/{id}", deps.OrderHandler.Detail)
	admin.Get("/admin/api/orders/{id}/payments", deps.OrderHandler.Attempts)
	admin.Patch("/admin/api/orders/{id}/delivery", deps.OrderHandler.UpdateDelivery)

	// Product management
	admin.Get("/admin/api/products", deps.CatalogHandler.ListProducts)
	admin.Post("/admin/api/products", deps.CatalogHandler.CreateProduct)
	admin.Get("/admin/api/products/{id}", deps.CatalogHandler.GetProduct)
	admin.Put("/admin/api/products/{id}", deps.CatalogHandler.UpdateProduct)
	admin.Delete("/admin/api/products/{id}", deps.CatalogHandler.DeleteProduct)

	// Category management
	admin.Get("/admin/api/categories", deps.CatalogHandler.ListCategories)
	admin.Post("/admin/api/categories", deps.CatalogHandler.CreateCategory)
	admin.Delete("/admin/api/categories/{id}", deps.CatalogHandler.DeleteCategory)

	// Settings
	admin.Get("/admin/api/settings/payment", deps.SettingsHandler.Get)
	admin.Put("/admin/api/settings/payment", deps.SettingsHandler.Update)
}
