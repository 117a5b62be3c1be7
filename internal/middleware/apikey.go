package middleware

import (
	"crypto/subtle"
	"net/http"

	"payments-service/pkg/response"
)

// APIKey guards merchant-facing endpoints with a static key check. An empty
// configured key disables the check, which is only acceptable in local dev.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				response.Error(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
