package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler/admin"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/router"
	"github.com/stretchr/testify/assert"
)

type tokenAuthenticator map[string]*domain.Principal

func (a tokenAuthenticator) Authenticate(_ context.Context, token string) (*domain.Principal, error) {
	if p, ok := a[token]; ok {
		return p, nil
	}
	return nil, domain.ErrSessionRequired
}

type staffAuthorizer struct{}

func (staffAuthorizer) CanEditDelivery(p *domain.Principal) bool {
	return p.Role == domain.RoleSuperAdmin
}

func newTestRouter() http.Handler {
	authn := tokenAuthenticator{
		"customer": {ID: "u-1", Email: "ana@example.com", Role: domain.RoleCustomer},
		"admin":    {ID: "u-2", Email: "ops@example.com", Role: domain.RoleAdmin},
		"root":     {ID: "u-3", Email: "root@example.com", Role: domain.RoleSuperAdmin},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := router.New(middleware.WithPrincipal(authn))
	RegisterStorefrontRoutes(r, StorefrontDeps{})
	RegisterAdminRoutes(r, AdminDeps{MeHandler: admin.NewMeHandler(staffAuthorizer{})})
	RegisterOpsRoutes(r, OpsDeps{HealthHandler: ok, MetricsHandler: ok})
	return r
}

func TestRoutes_AccessControl(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"admin api anonymous", http.MethodGet, "/admin/api/me", "", http.StatusUnauthorized},
		{"admin api customer", http.MethodGet, "/admin/api/me", "customer", http.StatusForbidden},
		{"admin api staff", http.MethodGet, "/admin/api/me", "admin", http.StatusOK},
		{"admin orders customer", http.MethodGet, "/admin/api/orders", "customer", http.StatusForbidden},
		{"delivery patch anonymous", http.MethodPatch, "/admin/api/orders/o-1/delivery", "", http.StatusUnauthorized},
		{"settings anonymous", http.MethodPut, "/admin/api/settings/payment", "", http.StatusUnauthorized},
		{"place order anonymous", http.MethodPost, "/api/orders", "", http.StatusUnauthorized},
		{"health is open", http.MethodGet, "/healthz", "", http.StatusOK},
		{"metrics is open", http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRoutes_MePermissions(t *testing.T) {
	h := newTestRouter()

	for token, want := range map[string]string{
		"admin": `"canEditDelivery":false`,
		"root":  `"canEditDelivery":true`,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, token)
		assert.Contains(t, rec.Body.String(), want, token)
	}
}

func TestRoutes_CookieSessionNeedsJSON(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "ponto_session", Value: "admin"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
