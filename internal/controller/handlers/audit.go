package handlers

import (
	"net/http"

	"outpost/internal/controller/middleware"
	"outpost/pkg/api"
)

// GetAudit handles GET /audit. Tenant-scoped, newest-first, limit-bounded.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.audit.GetTenantAudit(ctx, tenantID, limitParam(r, defaultListLimit))
	if err != nil {
		h.logger.Error("failed to read audit trail", "error", err)
		h.httpError(w, "Failed to read audit trail", http.StatusInternalServerError)
		return
	}

	resp := make([]api.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, api.AuditEntryResponse{
			Timestamp: e.Timestamp,
			Action:    e.Action,
			Resource:  e.Resource,
			Metadata:  e.Metadata,
			RequestID: e.RequestID,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}
