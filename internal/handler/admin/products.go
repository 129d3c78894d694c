package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/shopspring/decimal"
)

// CatalogManager is the admin side of the catalog.
type CatalogManager interface {
	AdminListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in service.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, in service.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// productRequest is the create and update body. Field rules beyond shape
// (SKU pattern, positive price) are enforced by the catalog service.
type productRequest struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=200"`
	Slug        string          `json:"slug" validate:"max=200"`
	Description string          `json:"description" validate:"max=5000"`
	CategoryID  *string         `json:"categoryId" validate:"omitempty,uuid"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Active      *bool           `json:"active"`
}

func (req productRequest) input() service.ProductInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return service.ProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      active,
	}
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Slug string `json:"slug" validate:"max=120"`
}

// CatalogHandler handles the admin product and category routes.
type CatalogHandler struct {
	catalog CatalogManager
}

// NewCatalogHandler creates an admin catalog handler.
func NewCatalogHandler(catalog CatalogManager) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts handles GET /admin/api/products, including inactive products.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := handler.QueryInt(r, "limit", 0)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	offset, err := handler.QueryInt(r, "offset", 0)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	q := r.URL.Query()
	products, err := h.catalog.AdminListProducts(r.Context(), domain.ProductFilter{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		Query:        strings.TrimSpace(q.Get("q")),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

// GetProduct handles GET /admin/api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /admin/api/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req.input())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("admin: product created", "product_id", product.ID, "sku", product.SKU)
	handler.WriteJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /admin/api/products/{id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("admin: product updated", "product_id", product.ID)
	handler.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /admin/api/products/{id}
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("admin: product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /admin/api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// CreateCategory handles POST /admin/api/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), service.CategoryInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, category)
}

// DeleteCategory handles DELETE /admin/api/categories/{id}. A category
// that still has products is a conflict.
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
