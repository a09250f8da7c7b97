package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"outpost/internal/audit"
	"outpost/internal/store"
	"outpost/pkg/api"
)

// CreateKey handles POST /tenants/{id}/keys (admin surface).
// The raw credential appears in this response and nowhere else, ever.
func (h *Handlers) CreateKey(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")

	var req api.CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = "default"
	}

	if _, err := h.store.GetTenantByID(r.Context(), tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Tenant not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to resolve tenant", "error", err)
		h.httpError(w, "Failed to create api key", http.StatusInternalServerError)
		return
	}

	rawKey, keyID, err := h.provisionKey(r, tenantID, req.Name)
	if err != nil {
		h.logger.Error("failed to create api key", "error", err)
		h.httpError(w, "Failed to create api key", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateKeyResponse{
		KeyID:     keyID,
		Name:      req.Name,
		APIKey:    rawKey,
		CreatedAt: time.Now().UTC(),
	})
}

// RevokeKey handles DELETE /tenants/{id}/keys/{key_id} (admin surface).
// Revocation is a flag flip; the hashed record stays for the audit trail.
func (h *Handlers) RevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := r.PathValue("id")
	keyID := r.PathValue("key_id")

	err := h.store.RevokeAPIKey(ctx, tenantID, keyID)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to revoke api key", "error", err)
		h.httpError(w, "Failed to revoke api key", http.StatusInternalServerError)
		return
	}

	h.audit.Log(ctx, tenantID, audit.ActionRevokeKey, keyID, nil)
	h.respondJson(w, http.StatusOK, map[string]string{"status": "revoked"})
}
