package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/ponto/internal/cookie"
	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/payment"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staff      = &domain.Principal{ID: "b7e0c6a4-0f1e-4f7a-9d58-0d7f2b8a4c01", Email: "ops@example.com", Role: domain.RoleAdmin}
	superAdmin = &domain.Principal{ID: "c1d2e3f4-0000-4000-8000-000000000001", Email: "root@example.com", Role: domain.RoleSuperAdmin}
)

func jsonRequest(method, target, body string, p *domain.Principal) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req = req.WithContext(domain.NewContextWithPrincipal(req.Context(), p))
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ============================================================================
// Login
// ============================================================================

type mockAuthenticator struct {
	loginFunc func(ctx context.Context, email, password string, staffOnly bool) (*service.Session, error)
}

func (m *mockAuthenticator) Login(ctx context.Context, email, password string, staffOnly bool) (*service.Session, error) {
	return m.loginFunc(ctx, email, password, staffOnly)
}

func TestLoginHandler_HandleSubmit(t *testing.T) {
	auth := &mockAuthenticator{loginFunc: func(_ context.Context, email, password string, staffOnly bool) (*service.Session, error) {
		assert.True(t, staffOnly, "admin login must reject customer accounts")
		if email != "ops@example.com" || password != "s3cret-pass" {
			return nil, domain.ErrInvalidCredentials
		}
		return &service.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour), Principal: staff}, nil
	}}
	h := NewLoginHandler(auth, cookie.NewConfig("", false))

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleSubmit(rec, jsonRequest(http.MethodPost, "/admin/login", `{"email":"ops@example.com","password":"s3cret-pass"}`, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tok", decode(t, rec)["token"])
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, cookie.SessionCookieName, cookies[0].Name)
		assert.Equal(t, "tok", cookies[0].Value)
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleSubmit(rec, jsonRequest(http.MethodPost, "/admin/login", `{"email":"ops@example.com","password":"nope"}`, nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("missing password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleSubmit(rec, jsonRequest(http.MethodPost, "/admin/login", `{"email":"ops@example.com"}`, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["fields"], "password")
	})
}

type allowSuperAdmins struct{}

func (allowSuperAdmins) CanEditDelivery(p *domain.Principal) bool {
	return p != nil && p.Role == domain.RoleSuperAdmin
}

func (allowSuperAdmins) CanEditSettings(p *domain.Principal) bool {
	return p != nil && p.Role == domain.RoleSuperAdmin
}

func TestMeHandler(t *testing.T) {
	h := NewMeHandler(allowSuperAdmins{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/me", "", superAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	perms := decode(t, rec)["permissions"].(map[string]any)
	assert.Equal(t, true, perms["canEditDelivery"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/me", "", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// Orders
// ============================================================================

type mockOrders struct {
	listParams domain.OrderListParams
	order      *domain.Order
	attempts   []domain.PaymentAttempt
	err        error
}

func (m *mockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if m.order == nil || m.order.ID != id {
		return nil, domain.ErrOrderNotFound
	}
	return m.order, nil
}

func (m *mockOrders) ListOrders(_ context.Context, params domain.OrderListParams) ([]domain.Order, error) {
	m.listParams = params
	if m.err != nil {
		return nil, m.err
	}
	if m.order == nil {
		return nil, nil
	}
	return []domain.Order{*m.order}, nil
}

func (m *mockOrders) ListPaymentAttempts(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	if _, err := m.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return m.attempts, nil
}

type mockDelivery struct {
	patch     service.DeliveryPatch
	principal *domain.Principal
}

func (m *mockDelivery) UpdateDelivery(_ context.Context, orderID string, p *domain.Principal, patch service.DeliveryPatch) (*domain.Order, error) {
	m.patch, m.principal = patch, p
	if !(allowSuperAdmins{}).CanEditDelivery(p) {
		return nil, domain.ErrDeliveryUpdateForbidden
	}
	if patch.IsEmpty() {
		return nil, domain.ErrNothingToUpdate
	}
	return &domain.Order{ID: orderID, Status: domain.OrderStatusShipped}, nil
}

func newOrderMux(orders *mockOrders, delivery *mockDelivery) *http.ServeMux {
	h := NewOrderHandler(orders, delivery)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/api/orders", h.List)
	mux.HandleFunc("GET /admin/api/orders/{id}", h.Detail)
	mux.HandleFunc("GET /admin/api/orders/{id}/payments", h.Attempts)
	mux.HandleFunc("PATCH /admin/api/orders/{id}/delivery", h.UpdateDelivery)
	return mux
}

func TestOrderHandler_List(t *testing.T) {
	orders := &mockOrders{order: &domain.Order{ID: "o-1", OrderNumber: "PT-2026-000001", TotalAmount: decimal.NewFromInt(10)}}
	mux := newOrderMux(orders, &mockDelivery{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/orders?status=paid&limit=10&offset=20", "", staff))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderListParams{Status: domain.OrderStatusPaid, Limit: 10, Offset: 20}, orders.listParams)
	assert.Len(t, decode(t, rec)["orders"], 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/orders?offset=abc", "", staff))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandler_DetailAndAttempts(t *testing.T) {
	orders := &mockOrders{
		order:    &domain.Order{ID: "o-1", OrderNumber: "PT-2026-000001"},
		attempts: []domain.PaymentAttempt{{ID: "a-1", OrderID: "o-1", Provider: "STRIPE", Status: domain.PaymentStatusPaid}},
	}
	mux := newOrderMux(orders, &mockDelivery{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/orders/o-1", "", staff))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PT-2026-000001", decode(t, rec)["orderNumber"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/orders/o-1/payments", "", staff))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["attempts"], 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodGet, "/admin/api/orders/o-2/payments", "", staff))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandler_UpdateDelivery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		principal  *domain.Principal
		wantStatus int
		check      func(t *testing.T, patch service.DeliveryPatch)
	}{
		{
			name:       "set and clear fields",
			body:       `{"trackingCode":"BR123","shippingMethod":null,"status":"SHIPPED"}`,
			principal:  superAdmin,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, patch service.DeliveryPatch) {
				assert.Equal(t, domain.Some("BR123"), patch.TrackingCode)
				assert.Equal(t, domain.OptionalString{Set: true}, patch.ShippingMethod)
				assert.False(t, patch.DeliveryDescription.Set)
				assert.Equal(t, domain.Some("SHIPPED"), patch.Status)
			},
		},
		{
			name:       "plain admin is forbidden",
			body:       `{"trackingCode":"BR123"}`,
			principal:  staff,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "empty patch",
			body:       `{}`,
			principal:  superAdmin,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong type",
			body:       `{"trackingCode":42}`,
			principal:  superAdmin,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delivery := &mockDelivery{}
			mux := newOrderMux(&mockOrders{}, delivery)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, jsonRequest(http.MethodPatch, "/admin/api/orders/o-1/delivery", tt.body, tt.principal))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				assert.Equal(t, tt.principal, delivery.principal)
				tt.check(t, delivery.patch)
			}
		})
	}
}

// ============================================================================
// Catalog
// ============================================================================

type mockCatalog struct {
	CatalogManager
	created service.ProductInput
	err     error
}

func (m *mockCatalog) CreateProduct(_ context.Context, in service.ProductInput) (*domain.Product, error) {
	m.created = in
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: "p-1", SKU: in.SKU, Name: in.Name, Price: in.Price, Active: in.Active}, nil
}

func (m *mockCatalog) DeleteCategory(context.Context, string) error {
	return m.err
}

func TestCatalogHandler_CreateProduct(t *testing.T) {
	t.Run("active by default", func(t *testing.T) {
		catalog := &mockCatalog{}
		rec := httptest.NewRecorder()
		NewCatalogHandler(catalog).CreateProduct(rec, jsonRequest(http.MethodPost, "/admin/api/products",
			`{"sku":"tp-x1","name":"ThinkPad X1","price":"8999.90","stock":3}`, staff))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, catalog.created.Active)
		assert.Equal(t, "8999.9", catalog.created.Price.String())
		assert.Equal(t, 3, catalog.created.Stock)
	})

	t.Run("duplicate sku", func(t *testing.T) {
		catalog := &mockCatalog{err: domain.ErrDuplicateSKU}
		rec := httptest.NewRecorder()
		NewCatalogHandler(catalog).CreateProduct(rec, jsonRequest(http.MethodPost, "/admin/api/products",
			`{"sku":"TP-X1","name":"ThinkPad X1","price":"10","active":false}`, staff))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, catalog.created.Active)
	})

	t.Run("negative stock and bad category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewCatalogHandler(&mockCatalog{}).CreateProduct(rec, jsonRequest(http.MethodPost, "/admin/api/products",
			`{"sku":"TP-X1","name":"ThinkPad X1","price":"10","stock":-1,"categoryId":"notebooks"}`, staff))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		fields := decode(t, rec)["fields"].(map[string]any)
		assert.Contains(t, fields, "stock")
		assert.Contains(t, fields, "categoryId")
	})
}

func TestCatalogHandler_DeleteCategory(t *testing.T) {
	mux := http.NewServeMux()
	catalog := &mockCatalog{}
	mux.HandleFunc("DELETE /admin/api/categories/{id}", NewCatalogHandler(catalog).DeleteCategory)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodDelete, "/admin/api/categories/c-1", "", staff))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	catalog.err = domain.ErrCategoryInUse
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest(http.MethodDelete, "/admin/api/categories/c-1", "", staff))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ============================================================================
// Settings
// ============================================================================

type mockSettings struct {
	cfg    payment.PolicyConfig
	values map[string]string
}

func (m *mockSettings) PolicyConfig(context.Context) (payment.PolicyConfig, error) {
	return m.cfg, nil
}

func (m *mockSettings) UpdatePolicy(_ context.Context, values map[string]string) (payment.PolicyConfig, error) {
	m.values = values
	if len(values) == 0 {
		return payment.PolicyConfig{}, domain.Errorf(domain.ENOOP, "settings.update", "no settings to update")
	}
	return m.cfg, nil
}

func TestSettingsHandler(t *testing.T) {
	settings := &mockSettings{cfg: payment.DefaultPolicyConfig()}
	h := NewSettingsHandler(settings, allowSuperAdmins{})

	rec := httptest.NewRecorder()
	h.Get(rec, jsonRequest(http.MethodGet, "/admin/api/settings/payment", "", staff))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Contains(t, out, "policy")
	assert.Contains(t, out["settings"], "payment.max_installments")

	rec = httptest.NewRecorder()
	h.Update(rec, jsonRequest(http.MethodPut, "/admin/api/settings/payment", `{"payment.max_installments":"6"}`, staff))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, settings.values, "forbidden update must not reach the store")

	rec = httptest.NewRecorder()
	h.Update(rec, jsonRequest(http.MethodPut, "/admin/api/settings/payment", `{"payment.max_installments":"6"}`, superAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"payment.max_installments": "6"}, settings.values)

	rec = httptest.NewRecorder()
	h.Update(rec, jsonRequest(http.MethodPut, "/admin/api/settings/payment", `{}`, superAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Update(rec, jsonRequest(http.MethodPut, "/admin/api/settings/payment", `{"payment.max_installments":6}`, superAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "values must be strings")
}
