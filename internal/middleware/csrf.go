package middleware

import (
	"mime"
	"net/http"

	"github.com/dukerupert/ponto/internal/domain"
)

// RequireJSONForCookieSessions rejects cookie-authenticated POSTs that a
// cross-site HTML form could have produced. The request must either carry
// an application/json body or, when bodiless, an X-Requested-With header.
// Neither can be sent cross-origin without a CORS preflight. PUT, PATCH
// and DELETE always need a preflight and pass through. Bearer-token
// requests are not affected.
func RequireJSONForCookieSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !SessionFromCookie(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength == 0 && r.Header.Get("X-Requested-With") != "" {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			respondWithError(w, r, domain.Errorf(domain.EFORBIDDEN, "", "Content-Type must be application/json"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
