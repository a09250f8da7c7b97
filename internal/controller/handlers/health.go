package handlers

import "net/http"

// Healthz reports process liveness. It says nothing about dependencies.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Readyz reports whether the controller can take traffic. Postgres backs
// every operation, so the store ping is the whole readiness gate.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.httpError(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	h.respondJson(w, http.StatusOK, map[string]string{"status": "ready"})
}
