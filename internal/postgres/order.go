package postgres

import (
	"context"
	"encoding/json"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id::text, order_number, user_id::text, email, status, payment_status,
	payment_reference, provider_payment_id, total_amount, currency, notes,
	delivery_description, shipping_method, tracking_code, shipped_at,
	delivered_at, paid_at, payment_error, created_at, updated_at`

const attemptColumns = `id::text, order_id::text, provider, event_type, status, external_id,
	idempotency_key, amount, currency, payload, error_message, processed_at, created_at`

// =============================================================================
// OrderStore
// =============================================================================

// LastOrderNumber returns the highest order number starting with prefix.
// Sequences are zero-padded to six digits but may grow past them, so a
// longer number sorts higher.
func (s *Store) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := s.db.QueryRow(ctx,
		`SELECT order_number FROM orders
		 WHERE starts_with(order_number, $1)
		 ORDER BY length(order_number) DESC, order_number DESC
		 LIMIT 1`, prefix).Scan(&number)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", domain.Internal(err, "order.lastNumber", "failed to read last order number")
	}
	return number, nil
}

// CreateOrder inserts the order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	const op = "order.create"

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (order_number, user_id, email, status, payment_status,
				payment_reference, provider_payment_id, total_amount, currency, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id::text, created_at, updated_at`,
			order.OrderNumber, order.UserID, order.Email, string(order.Status), string(order.PaymentStatus),
			order.PaymentReference, order.ProviderPaymentID, order.TotalAmount, order.Currency, order.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, line_no, product_id, sku, name, quantity, unit_price)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id::text`,
				order.ID, i+1, item.ProductID, item.SKU, item.Name, item.Quantity, item.UnitPrice,
			).Scan(&item.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if name, ok := constraintViolation(err, pgUniqueViolation); ok && name == "orders_order_number_key" {
			return domain.ErrOrderNumberTaken
		}
		return domain.Internal(err, op, "failed to create order")
	}
	return nil
}

// GetOrder returns an order with its items.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, domain.ErrOrderNotFound
	}
	return getOrderWithItems(ctx, s.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetOrderByNumber returns an order with its items.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return getOrderWithItems(ctx, s.db, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

// GetOrderByProviderPaymentID returns the order bound to a provider payment.
func (s *Store) GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Order, error) {
	return getOrderWithItems(ctx, s.db,
		`SELECT `+orderColumns+` FROM orders WHERE provider_payment_id = $1`, providerPaymentID)
}

// ListOrders returns a page of orders without items, newest first.
func (s *Store) ListOrders(ctx context.Context, params domain.OrderListParams) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC, order_number DESC
		 LIMIT $2 OFFSET $3`,
		string(params.Status), params.Limit, params.Offset)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, "order.list", "failed to read order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	return orders, nil
}

// GetPaymentAttemptByKey returns the attempt recorded under an idempotency key.
func (s *Store) GetPaymentAttemptByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentAttempt, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE idempotency_key = $1`, idempotencyKey)
	a, err := scanAttempt(row)
	if isNoRows(err) {
		return nil, domain.ErrPaymentAttemptNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "paymentAttempt.get", "failed to read payment attempt")
	}
	return a, nil
}

// ListPaymentAttempts returns an order's attempts, oldest first.
func (s *Store) ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	if !validID(orderID) {
		return []domain.PaymentAttempt{}, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts
		 WHERE order_id = $1
		 ORDER BY processed_at, created_at`, orderID)
	if err != nil {
		return nil, domain.Internal(err, "paymentAttempt.list", "failed to list payment attempts")
	}
	defer rows.Close()

	attempts := []domain.PaymentAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, domain.Internal(err, "paymentAttempt.list", "failed to read payment attempt")
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "paymentAttempt.list", "failed to list payment attempts")
	}
	return attempts, nil
}

// InTx runs fn in a transaction that commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx service.OrderTx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{db: tx})
	})
}

// =============================================================================
// OrderTx
// =============================================================================

type orderTx struct {
	db DBTX
}

var _ service.OrderTx = (*orderTx)(nil)

// LockOrder reads the order with SELECT ... FOR UPDATE.
func (t *orderTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, domain.ErrOrderNotFound
	}
	return getOrderWithItems(ctx, t.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// InsertPaymentAttempt records an attempt. A repeated idempotency key is
// reported as domain.ErrDuplicateIdempotencyKey.
func (t *orderTx) InsertPaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	var amount decimal.NullDecimal
	if a.Amount != nil {
		amount = decimal.NewNullDecimal(*a.Amount)
	}
	payload := a.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	err := t.db.QueryRow(ctx,
		`INSERT INTO payment_attempts (id, order_id, provider, event_type, status, external_id,
			idempotency_key, amount, currency, payload, error_message, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		a.ID, a.OrderID, a.Provider, a.EventType, string(a.Status), a.ExternalID,
		a.IdempotencyKey, amount, a.Currency, []byte(payload), a.ErrorMessage, a.ProcessedAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		if name, ok := constraintViolation(err, pgUniqueViolation); ok && name == "payment_attempts_idempotency_key_key" {
			return domain.ErrDuplicateIdempotencyKey
		}
		return domain.Internal(err, "paymentAttempt.insert", "failed to record payment attempt")
	}
	return nil
}

// UpdateOrder writes the mutable order columns.
func (t *orderTx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	tag, err := t.db.Exec(ctx,
		`UPDATE orders SET
			status = $2,
			payment_status = $3,
			payment_reference = $4,
			provider_payment_id = $5,
			delivery_description = $6,
			shipping_method = $7,
			tracking_code = $8,
			shipped_at = $9,
			delivered_at = $10,
			paid_at = $11,
			payment_error = $12,
			updated_at = $13
		 WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentStatus), o.PaymentReference, o.ProviderPaymentID,
		o.DeliveryDescription, o.ShippingMethod, o.TrackingCode, o.ShippedAt,
		o.DeliveredAt, o.PaidAt, o.PaymentError, o.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, "order.update", "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// =============================================================================
// Scanning
// =============================================================================

func getOrderWithItems(ctx context.Context, db DBTX, query string, arg any) (*domain.Order, error) {
	o, err := scanOrder(db.QueryRow(ctx, query, arg))
	if isNoRows(err) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to read order")
	}

	items, err := listOrderItems(ctx, db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func listOrderItems(ctx context.Context, db DBTX, orderID string) ([]domain.OrderItem, error) {
	rows, err := db.Query(ctx,
		`SELECT id::text, order_id::text, COALESCE(product_id::text, ''), sku, name, quantity, unit_price
		 FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.items", "failed to list order items")
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, domain.Internal(err, "order.items", "failed to read order item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.items", "failed to list order items")
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o             domain.Order
		status        string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Email, &status, &paymentStatus,
		&o.PaymentReference, &o.ProviderPaymentID, &o.TotalAmount, &o.Currency, &o.Notes,
		&o.DeliveryDescription, &o.ShippingMethod, &o.TrackingCode, &o.ShippedAt,
		&o.DeliveredAt, &o.PaidAt, &o.PaymentError, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &o, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var (
		a       domain.PaymentAttempt
		status  string
		amount  decimal.NullDecimal
		payload []byte
	)
	err := row.Scan(
		&a.ID, &a.OrderID, &a.Provider, &a.EventType, &status, &a.ExternalID,
		&a.IdempotencyKey, &amount, &a.Currency, &payload, &a.ErrorMessage, &a.ProcessedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.PaymentStatus(status)
	if amount.Valid {
		a.Amount = &amount.Decimal
	}
	a.Payload = json.RawMessage(payload)
	return &a, nil
}
