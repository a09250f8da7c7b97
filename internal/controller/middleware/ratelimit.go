package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"outpost/internal/store"
	"outpost/pkg/api"
)

// TenantResolver fetches the tenant record behind an authorized request.
type TenantResolver interface {
	GetTenantByID(ctx context.Context, id string) (*store.Tenant, error)
}

// RateLimitMiddleware applies the tenant's token bucket to every request.
// RateLimit=0 on the tenant record means unlimited. Runs after auth.
func RateLimitMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limiters := sync.Map{} // tenantID -> *cachedLimiter

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := TenantIDFromContext(r.Context())
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(api.ErrorResponse{
					Error: "Unauthorized",
					Code:  "401",
				})
				return
			}

			tenant, err := resolver.GetTenantByID(r.Context(), tenantID)
			if err != nil {
				// Limits are advisory; a lookup failure does not block the
				// already-authorized request.
				next.ServeHTTP(w, r)
				return
			}

			if tenant.RateLimit > 0 {
				limiter := getOrCreateLimiter(&limiters, tenant, 5*time.Minute)
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func getOrCreateLimiter(limiters *sync.Map, tenant *store.Tenant, ttl time.Duration) *rate.Limiter {
	if limiter, ok := limiters.Load(tenant.ID); ok {
		cached := limiter.(*cachedLimiter)
		if time.Now().Before(cached.expiresAt) {
			return cached.limiter
		}
		// expired, need to create new
	}

	limiter := rate.NewLimiter(
		rate.Limit(tenant.RateLimit),
		tenant.RateLimitBurst,
	)
	limiters.Store(tenant.ID, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(ttl),
	})
	return limiter
}
