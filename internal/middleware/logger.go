package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/ponto/internal/domain"
)

const loggerKey contextKey = "logger"

// WithRequestLogger stores a logger tagged with the request id, method,
// path and client IP. Signed-in requests also carry the principal's id and
// role, so admin actions such as delivery edits are attributable in logs.
// It must run after RequestID and WithPrincipal.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", GetClientIP(r)),
			}
			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if p := domain.PrincipalFromContext(r.Context()); p != nil {
				attrs = append(attrs, slog.String("user_id", p.ID), slog.String("role", string(p.Role)))
			}

			ctx := context.WithValue(r.Context(), loggerKey, base.With(attrs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request logger, else the first non-nil fallback,
// else slog.Default().
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
