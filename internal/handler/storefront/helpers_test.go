package storefront

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/stretchr/testify/require"
)

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withPrincipal(req *http.Request, p *domain.Principal) *http.Request {
	return req.WithContext(domain.NewContextWithPrincipal(req.Context(), p))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	return fields
}

var customer = &domain.Principal{ID: "6c7ad1b2-9f2e-4c7e-8a43-6f7f3b9d1a10", Email: "ana@example.com", Role: domain.RoleCustomer}

