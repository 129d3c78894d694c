package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductInput is the admin-editable part of a product.
type ProductInput struct {
	SKU         string
	Name        string
	Slug        string
	Description string
	CategoryID  *string
	Price       decimal.Decimal
	Stock       int
	Active      bool
}

// CategoryInput creates a category.
type CategoryInput struct {
	Name string
	Slug string
}

// CatalogService serves the storefront catalog and its admin CRUD.
type CatalogService struct {
	store  CatalogStore
	logger *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(store CatalogStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// =============================================================================
// STOREFRONT OPERATIONS
// =============================================================================

// ListProducts returns active products matching filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.IncludeInactive = false
	return s.list(ctx, filter)
}

// GetProductBySlug returns an active product.
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := s.store.GetProductBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// ListCategories returns every category.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx)
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// AdminListProducts returns products including inactive ones.
func (s *CatalogService) AdminListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.IncludeInactive = true
	return s.list(ctx, filter)
}

// GetProduct returns a product by id regardless of status.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// CreateProduct validates and stores a new product.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p := &domain.Product{}
	if err := applyProductInput(p, in, "product.create"); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product created", "product_id", p.ID, "sku", p.SKU)
	return p, nil
}

// UpdateProduct replaces the editable fields of a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProductInput(p, in, "product.update"); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product updated", "product_id", p.ID, "sku", p.SKU)
	return p, nil
}

// DeleteProduct removes a product.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

// CreateCategory validates and stores a category.
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	const op = "category.create"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError(op, "name", "is required")
	}
	slug := normalizeSlug(in.Slug, name)
	if !slugPattern.MatchString(slug) {
		return nil, domain.NewValidationError(op, "slug", "must contain only lowercase letters, digits and dashes")
	}

	c := &domain.Category{Name: name, Slug: slug}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category that has no products.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *CatalogService) list(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.CategorySlug = strings.ToLower(strings.TrimSpace(filter.CategorySlug))
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 48
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListProducts(ctx, filter)
}

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugStrip      = regexp.MustCompile(`[^a-z0-9]+`)
	skuPattern     = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,63}$`)
	maxProductName = 200
)

func applyProductInput(p *domain.Product, in ProductInput, op string) error {
	verr := &domain.ValidationError{Op: op, Fields: map[string]string{}}

	sku := strings.ToUpper(strings.TrimSpace(in.SKU))
	if !skuPattern.MatchString(sku) {
		verr.Fields["sku"] = "must be 1-64 characters of letters, digits, dot, dash or underscore"
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Fields["name"] = "is required"
	}
	slug := normalizeSlug(in.Slug, name)
	if !slugPattern.MatchString(slug) {
		verr.Fields["slug"] = "must contain only lowercase letters, digits and dashes"
	}
	if !in.Price.IsPositive() {
		verr.Fields["price"] = "must be positive"
	}
	if in.Stock < 0 {
		verr.Fields["stock"] = "must not be negative"
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	p.SKU = sku
	p.Name = truncateRunes(name, maxProductName)
	p.Slug = slug
	p.Description = strings.TrimSpace(in.Description)
	p.CategoryID = optional(derefString(in.CategoryID))
	p.Price = in.Price
	p.Stock = in.Stock
	p.Active = in.Active
	return nil
}

// normalizeSlug uses slug when given and derives one from name otherwise.
func normalizeSlug(slug, name string) string {
	s := strings.ToLower(strings.TrimSpace(slug))
	if s == "" {
		s = strings.ToLower(name)
	}
	return strings.Trim(slugStrip.ReplaceAllString(s, "-"), "-")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
