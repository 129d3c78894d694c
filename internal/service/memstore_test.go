package service

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/google/uuid"
)

// memStore is an in-memory store that enforces the same unique
// constraints as the database schema.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex // serializes transactions, standing in for row locks

	orders     map[string]*domain.Order
	attempts   []domain.PaymentAttempt
	products   map[string]*domain.Product
	categories map[string]*domain.Category
	settings   map[string]string
	users      map[string]*domain.User

	// hideAttempts makes GetPaymentAttemptByKey miss, simulating a
	// concurrent delivery that passed the lookup first.
	hideAttempts bool

	// beforeCreateOrder can reject an insert, e.g. to simulate another
	// process taking the order number first.
	beforeCreateOrder func(number string) error

	updateOrderErr error
}

func newMemStore() *memStore {
	return &memStore{
		orders:     map[string]*domain.Order{},
		products:   map[string]*domain.Product{},
		categories: map[string]*domain.Category{},
		settings:   map[string]string{},
		users:      map[string]*domain.User{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// seedOrder stores an order directly and returns its id.
func (m *memStore) seedOrder(o domain.Order) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentStatusPending
	}
	m.orders[o.ID] = cloneOrder(&o)
	return o.ID
}

func (m *memStore) order(id string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.orders[id])
}

func (m *memStore) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// --- OrderStore ---

func (m *memStore) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, o := range m.orders {
		if !strings.HasPrefix(o.OrderNumber, prefix) {
			continue
		}
		if len(o.OrderNumber) > len(last) || (len(o.OrderNumber) == len(last) && o.OrderNumber > last) {
			last = o.OrderNumber
		}
	}
	return last, nil
}

func (m *memStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	if m.beforeCreateOrder != nil {
		if err := m.beforeCreateOrder(order.OrderNumber); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return domain.ErrOrderNumberTaken
		}
	}
	order.ID = uuid.NewString()
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memStore) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memStore) GetOrderByProviderPaymentID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ProviderPaymentID != nil && *o.ProviderPaymentID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memStore) ListOrders(ctx context.Context, params domain.OrderListParams) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if params.Status == "" || o.Status == params.Status {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	if params.Offset >= len(out) {
		return []domain.Order{}, nil
	}
	out = out[params.Offset:]
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (m *memStore) GetPaymentAttemptByKey(ctx context.Context, key string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideAttempts {
		return nil, domain.ErrPaymentAttemptNotFound
	}
	for _, a := range m.attempts {
		if a.IdempotencyKey == key {
			a := a
			return &a, nil
		}
	}
	return nil, domain.ErrPaymentAttemptNotFound
}

func (m *memStore) ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.PaymentAttempt{}
	for _, a := range m.attempts {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx OrderTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{store: m, orders: map[string]*domain.Order{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	m.attempts = append(m.attempts, tx.attempts...)
	return nil
}

// memTx stages writes until InTx commits them.
type memTx struct {
	store    *memStore
	orders   map[string]*domain.Order
	attempts []domain.PaymentAttempt
}

func (t *memTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.store.GetOrder(ctx, id)
}

func (t *memTx) InsertPaymentAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, existing := range append(slices.Clone(t.store.attempts), t.attempts...) {
		if existing.IdempotencyKey == a.IdempotencyKey {
			return domain.ErrDuplicateIdempotencyKey
		}
	}
	t.attempts = append(t.attempts, *a)
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	if t.store.updateOrderErr != nil {
		return t.store.updateOrderErr
	}
	t.orders[o.ID] = cloneOrder(o)
	return nil
}

// --- CatalogStore ---

func (m *memStore) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Product{}
	for _, p := range m.products {
		if !f.IncludeInactive && !p.Active {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == slug {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (m *memStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
		if existing.Slug == p.Slug {
			return domain.ErrDuplicateSlug
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	for id, existing := range m.products {
		if id != p.ID && existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *memStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Category{}
	for _, c := range m.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Slug == c.Slug {
			return domain.ErrDuplicateSlug
		}
	}
	c.ID = uuid.NewString()
	cc := *c
	m.categories[c.ID] = &cc
	return nil
}

func (m *memStore) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

// --- SettingsStore ---

func (m *memStore) GetSettings(ctx context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.settings {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) UpsertSettings(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.settings, values)
	return nil
}

// --- UserStore ---

func (m *memStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) CreateUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memStore) UpdateUser(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, ev domain.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEmitter) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Key
	}
	return out
}

// staticAuthz allows delivery edits for super-admins only.
type staticAuthz struct{}

func (staticAuthz) CanEditDelivery(p *domain.Principal) bool {
	return p != nil && p.Role == domain.RoleSuperAdmin
}

var (
	_ OrderStore    = (*memStore)(nil)
	_ CatalogStore  = (*memStore)(nil)
	_ SettingsStore = (*memStore)(nil)
	_ UserStore     = (*memStore)(nil)
)
