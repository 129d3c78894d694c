// Package admin serves the back-office JSON API. Every route except login
// requires a staff session.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/ponto/internal/cookie"
	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/middleware"
	"github.com/dukerupert/ponto/internal/service"
)

// Authenticator signs staff in.
type Authenticator interface {
	Login(ctx context.Context, email, password string, staffOnly bool) (*service.Session, error)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginHandler handles admin login and logout.
type LoginHandler struct {
	auth    Authenticator
	cookies *cookie.Config
}

// NewLoginHandler creates a new admin login handler
func NewLoginHandler(auth Authenticator, cookies *cookie.Config) *LoginHandler {
	return &LoginHandler{
		auth:    auth,
		cookies: cookies,
	}
}

// HandleSubmit handles POST /admin/login. The token is set as the session
// cookie and returned in the body.
func (h *LoginHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger := middleware.GetLogger(r.Context())

	session, err := h.auth.Login(r.Context(), req.Email, req.Password, true)
	if err != nil {
		// Audit log: failed login attempt
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			logger.Warn("admin: login failed",
				"email", domain.NormalizeEmail(req.Email),
				"ip", middleware.GetClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.SetSession(w, session.Token, time.Until(session.ExpiresAt))

	// Audit log: successful login
	logger.Info("admin: login succeeded",
		"user_id", session.Principal.ID,
		"role", session.Principal.Role,
		"ip", middleware.GetClientIP(r),
	)
	handler.WriteJSON(w, http.StatusOK, session)
}

// HandleLogout handles POST /admin/logout.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if p := domain.PrincipalFromContext(r.Context()); p != nil {
		middleware.GetLogger(r.Context()).Info("admin: logout", "user_id", p.ID)
	}
	h.cookies.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler serves GET /admin/api/me.
type MeHandler struct {
	authz service.DeliveryAuthorizer
}

// NewMeHandler creates a handler that describes the signed-in staff member.
func NewMeHandler(authz service.DeliveryAuthorizer) *MeHandler {
	return &MeHandler{authz: authz}
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := domain.PrincipalFromContext(r.Context())
	if p == nil {
		handler.ErrorResponse(w, r, domain.ErrSessionRequired)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"principal": p,
		"permissions": service.TrackingPermissions{
			CanEditDelivery: h.authz.CanEditDelivery(p),
		},
	})
}
