package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireInternalAuth guards the admin surface (tenant lifecycle, key
// management) with the deployment's system secret. The comparison is
// constant-time; any miss is a plain 401.
func RequireInternalAuth(systemSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || token == "" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(systemSecret)) != 1 {
				http.Error(w, "Invalid authorization token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
