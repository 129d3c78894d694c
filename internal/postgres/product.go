package postgres

import (
	"context"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/jackc/pgx/v5"
)

const productColumns = `p.id::text, p.sku, p.name, p.slug, p.description, p.category_id::text,
	p.price, p.stock, p.active, p.created_at, p.updated_at`

// =============================================================================
// PRODUCTS
// =============================================================================

// ListProducts returns products matching filter ordered by name.
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products p
		 LEFT JOIN categories c ON c.id = p.category_id
		 WHERE ($1 OR p.active)
		   AND ($2 = '' OR c.slug = $2)
		   AND ($3 = '' OR p.name ILIKE '%' || $3 || '%' OR p.sku ILIKE '%' || $3 || '%')
		 ORDER BY p.name, p.id
		 LIMIT $4 OFFSET $5`,
		filter.IncludeInactive, filter.CategorySlug, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, "product.list", "failed to read product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "product.list", "failed to list products")
	}
	return products, nil
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if !validID(id) {
		return nil, domain.ErrProductNotFound
	}
	return s.getProduct(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
}

// GetProductBySlug returns a product by slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.getProduct(ctx, `SELECT `+productColumns+` FROM products p WHERE p.slug = $1`, slug)
}

// CreateProduct inserts p and fills its id and timestamps.
func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO products (sku, name, slug, description, category_id, price, stock, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text, created_at, updated_at`,
		p.SKU, p.Name, p.Slug, p.Description, p.CategoryID, p.Price, p.Stock, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return productWriteError(err, "product.create")
	}
	return nil
}

// UpdateProduct writes the editable product columns.
func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if !validID(p.ID) {
		return domain.ErrProductNotFound
	}
	err := s.db.QueryRow(ctx,
		`UPDATE products SET
			sku = $2, name = $3, slug = $4, description = $5, category_id = $6,
			price = $7, stock = $8, active = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.SKU, p.Name, p.Slug, p.Description, p.CategoryID, p.Price, p.Stock, p.Active,
	).Scan(&p.UpdatedAt)
	if isNoRows(err) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return productWriteError(err, "product.update")
	}
	return nil
}

// DeleteProduct removes a product. Order lines keep their snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrProductNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "product.delete", "failed to delete product")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *Store) getProduct(ctx context.Context, query string, arg any) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, query, arg))
	if isNoRows(err) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "product.get", "failed to read product")
	}
	return p, nil
}

func productWriteError(err error, op string) error {
	if name, ok := constraintViolation(err, pgUniqueViolation); ok {
		switch name {
		case "products_sku_key":
			return domain.ErrDuplicateSKU
		case "products_slug_key":
			return domain.ErrDuplicateSlug
		}
	}
	if _, ok := constraintViolation(err, pgForeignKeyViolation); ok {
		return domain.NewValidationError(op, "categoryId", "unknown category")
	}
	return domain.Internal(err, op, "failed to save product")
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Slug, &p.Description, &p.CategoryID,
		&p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// ListCategories returns every category ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, domain.Internal(err, "category.list", "failed to list categories")
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, domain.Internal(err, "category.list", "failed to read category")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "category.list", "failed to list categories")
	}
	return categories, nil
}

// CreateCategory inserts c and fills its id.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id::text, created_at`,
		c.Name, c.Slug,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if name, ok := constraintViolation(err, pgUniqueViolation); ok && name == "categories_slug_key" {
			return domain.ErrDuplicateSlug
		}
		return domain.Internal(err, "category.create", "failed to create category")
	}
	return nil
}

// DeleteCategory removes a category that no product references.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrCategoryNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if _, ok := constraintViolation(err, pgForeignKeyViolation); ok {
			return domain.ErrCategoryInUse
		}
		return domain.Internal(err, "category.delete", "failed to delete category")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}
