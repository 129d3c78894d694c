package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/ponto/internal/cookie"
	"github.com/dukerupert/ponto/internal/handler"
	"github.com/dukerupert/ponto/internal/service"
)

// Accounts registers and signs in customers.
type Accounts interface {
	Register(ctx context.Context, email, name, password string) (*service.Session, error)
	Login(ctx context.Context, email, password string, staffOnly bool) (*service.Session, error)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthHandler serves the customer session endpoints. The session token is
// returned in the body for API clients and set as a cookie for browsers.
type AuthHandler struct {
	accounts Accounts
	cookies  *cookie.Config
}

// NewAuthHandler creates a customer auth handler.
func NewAuthHandler(accounts Accounts, cookies *cookie.Config) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookies: cookies}
}

// HandleRegister serves POST /api/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	session, err := h.accounts.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.SetSession(w, session.Token, time.Until(session.ExpiresAt))
	handler.WriteJSON(w, http.StatusCreated, session)
}

// HandleLogin serves POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password, false)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.SetSession(w, session.Token, time.Until(session.ExpiresAt))
	handler.WriteJSON(w, http.StatusOK, session)
}

// HandleLogout serves POST /api/auth/logout. Tokens are stateless, so
// logging out only drops the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
