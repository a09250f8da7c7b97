// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"outpost/internal/auth"
	"outpost/pkg/api"
)

// identityKey is the context key for the authorization decision.
type identityKey struct{}

// AuthMiddleware validates the bearer credential on every request and scopes
// the request context to the resolved tenant. The authorization check runs
// before any handler and carries no side effects of its own.
func AuthMiddleware(authorizer *auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w)
				return
			}

			decision := authorizer.Authorize(r.Context(), parts[1])
			if !decision.Allow {
				unauthorized(w)
				return
			}

			go authorizer.Touch(context.WithoutCancel(r.Context()), decision)

			ctx := NewContextWithIdentity(r.Context(), decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithIdentity attaches an Allow decision to the context.
func NewContextWithIdentity(ctx context.Context, d auth.Decision) context.Context {
	return context.WithValue(ctx, identityKey{}, d)
}

// IdentityFromContext extracts the authorization decision from the context.
func IdentityFromContext(ctx context.Context) (auth.Decision, bool) {
	d, ok := ctx.Value(identityKey{}).(auth.Decision)
	return d, ok && d.Allow
}

// TenantIDFromContext extracts the authorized tenant id from the context.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	d, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return d.TenantID, true
}

// unauthorized writes the uniform deny response. It never distinguishes
// between a missing record, a revoked key, or a lookup failure.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: "Unauthorized",
		Code:  "401",
	})
}
