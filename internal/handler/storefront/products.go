package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
)

// Catalog is the read side of the product catalog.
type Catalog interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ProductListHandler serves GET /api/products.
type ProductListHandler struct {
	catalog Catalog
}

// NewProductListHandler creates a product list handler.
func NewProductListHandler(catalog Catalog) *ProductListHandler {
	return &ProductListHandler{catalog: catalog}
}

// ServeHTTP lists active products. ?category filters by category slug and
// ?q matches name or SKU.
func (h *ProductListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	products, err := h.catalog.ListProducts(r.Context(), domain.ProductFilter{
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

// ProductDetailHandler serves GET /api/products/{slug}.
type ProductDetailHandler struct {
	catalog Catalog
}

// NewProductDetailHandler creates a product detail handler.
func NewProductDetailHandler(catalog Catalog) *ProductDetailHandler {
	return &ProductDetailHandler{catalog: catalog}
}

func (h *ProductDetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		handler.ErrorResponse(w, r, domain.ErrProductNotFound)
		return
	}

	product, err := h.catalog.GetProductBySlug(r.Context(), slug)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, product)
}

// CategoryListHandler serves GET /api/categories.
type CategoryListHandler struct {
	catalog Catalog
}

// NewCategoryListHandler creates a category list handler.
func NewCategoryListHandler(catalog Catalog) *CategoryListHandler {
	return &CategoryListHandler{catalog: catalog}
}

func (h *CategoryListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
