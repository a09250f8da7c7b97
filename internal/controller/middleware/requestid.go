package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"outpost/internal/logger"
)

// RequestID assigns a correlation id to every request, honoring an incoming
// X-Request-ID header. The id flows through the context into logs and audit
// entries.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", reqID)
		ctx := logger.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
