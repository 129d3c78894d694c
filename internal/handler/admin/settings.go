package admin

import (
	"context"
	"net/http"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/payment"
)

// PolicySettings reads and writes the payment policy settings.
type PolicySettings interface {
	PolicyConfig(ctx context.Context) (payment.PolicyConfig, error)
	UpdatePolicy(ctx context.Context, values map[string]string) (payment.PolicyConfig, error)
}

// SettingsAuthorizer decides who may change the payment policy.
type SettingsAuthorizer interface {
	CanEditSettings(p *domain.Principal) bool
}

// settingsResponse carries both the parsed policy and the stored key/value
// form that PUT accepts.
type settingsResponse struct {
	Policy   payment.PolicyConfig `json:"policy"`
	Settings map[string]string    `json:"settings"`
}

// SettingsHandler handles /admin/api/settings/payment.
type SettingsHandler struct {
	settings PolicySettings
	authz    SettingsAuthorizer
}

// NewSettingsHandler creates a payment settings handler. Any staff member
// may read the settings; only authz decides who may write them.
func NewSettingsHandler(settings PolicySettings, authz SettingsAuthorizer) *SettingsHandler {
	return &SettingsHandler{settings: settings, authz: authz}
}

// Get handles GET /admin/api/settings/payment
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.PolicyConfig(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, settingsResponse{Policy: cfg, Settings: cfg.Encode()})
}

// Update handles PUT /admin/api/settings/payment. The body is a flat
// object of payment.* keys; keys not present keep their stored value.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.authz.CanEditSettings(domain.PrincipalFromContext(r.Context())) {
		handler.ErrorResponse(w, r, domain.Forbidden("settings.update", "only a super-admin can change payment settings"))
		return
	}

	var values map[string]string
	if err := handler.DecodeJSON(r, &values); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cfg, err := h.settings.UpdatePolicy(r.Context(), values)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("admin: payment settings updated", "keys", len(values))
	handler.WriteJSON(w, http.StatusOK, settingsResponse{Policy: cfg, Settings: cfg.Encode()})
}
