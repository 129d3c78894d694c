package service

import (
	"context"

	"github.com/dukerupert/ponto/internal/domain"
)

// OrderStore is the order persistence boundary. Implementations enforce
// uniqueness of order numbers and payment idempotency keys in storage and
// report violations as domain.ErrOrderNumberTaken and
// domain.ErrDuplicateIdempotencyKey.
type OrderStore interface {
	// LastOrderNumber returns the highest order number starting with prefix,
	// or "" when there is none.
	LastOrderNumber(ctx context.Context, prefix string) (string, error)

	// CreateOrder inserts order and its items. ID, CreatedAt and UpdatedAt
	// are assigned by the store.
	CreateOrder(ctx context.Context, order *domain.Order) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Order, error)
	ListOrders(ctx context.Context, params domain.OrderListParams) ([]domain.Order, error)

	GetPaymentAttemptByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentAttempt, error)
	ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error)

	// InTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx is the set of writes that must commit together.
type OrderTx interface {
	// LockOrder reads the order and holds a row lock until the transaction ends.
	LockOrder(ctx context.Context, id string) (*domain.Order, error)

	InsertPaymentAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error
	UpdateOrder(ctx context.Context, order *domain.Order) error
}

// CatalogStore persists products and categories.
type CatalogStore interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// SettingsStore is a flat key/value store.
type SettingsStore interface {
	GetSettings(ctx context.Context, prefix string) (map[string]string, error)
	UpsertSettings(ctx context.Context, values map[string]string) error
}

// UserStore persists accounts.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
}

// EventEmitter receives order events after commit.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.OrderEvent) error
}
