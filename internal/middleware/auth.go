package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/ponto/internal/cookie"
	"github.com/dukerupert/ponto/internal/domain"
)

// Authenticator resolves a session token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

const viaCookieKey contextKey = "session_via_cookie"

// WithPrincipal resolves the session from the ponto_session cookie or an
// "Authorization: Bearer" header and stores the principal in the context.
// Requests without a valid session continue anonymously.
func WithPrincipal(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, viaCookie := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrSessionRequired) {
					next.ServeHTTP(w, r)
					return
				}
				respondInternalError(w, r, err)
				return
			}

			ctx := domain.NewContextWithPrincipal(r.Context(), principal)
			if viaCookie {
				ctx = context.WithValue(ctx, viaCookieKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects anonymous requests with 401 and non-staff
// principals with 403.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}
		if !domain.IsStaff(r.Context()) {
			respondForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromCookie reports whether the principal was resolved from the
// session cookie rather than a bearer token.
func SessionFromCookie(ctx context.Context) bool {
	v, _ := ctx.Value(viaCookieKey).(bool)
	return v
}

func sessionToken(r *http.Request) (token string, viaCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
	}
	if v := cookie.Get(r, cookie.SessionCookieName); v != "" {
		return v, true
	}
	return "", false
}
