package handler

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/ponto/internal/domain"
)

// QueryInt parses an optional non-negative integer query parameter.
func QueryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError("request.query", key, "must be a non-negative integer")
	}
	return n, nil
}
