package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG DOMAIN TYPES
// =============================================================================

// Category groups products on the storefront.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is a sellable catalog item.
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	CategoryID  *string         `json:"categoryId"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductFilter holds the simple storefront filters.
type ProductFilter struct {
	// CategorySlug restricts results to one category.
	CategorySlug string

	// Query is a case-insensitive substring match on name or SKU.
	Query string

	// IncludeInactive returns unpublished products too. Admin only.
	IncludeInactive bool

	Limit  int
	Offset int
}

// Catalog errors.
var (
	ErrProductNotFound  = &Error{Code: ENOTFOUND, Message: "product not found"}
	ErrCategoryNotFound = &Error{Code: ENOTFOUND, Message: "category not found"}
	ErrDuplicateSKU     = &Error{Code: ECONFLICT, Message: "a product with this SKU already exists"}
	ErrDuplicateSlug    = &Error{Code: ECONFLICT, Message: "slug already in use"}
	ErrCategoryInUse    = &Error{Code: ECONFLICT, Message: "category still has products"}
)
