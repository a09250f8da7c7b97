package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"outpost/internal/audit"
	"outpost/internal/auth"
	"outpost/internal/store"
	"outpost/pkg/api"
)

// CreateTenant handles POST /tenants (admin surface).
// It provisions the tenant together with its first API key; the raw key is
// returned once and only its hash is stored.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" {
		h.httpError(w, "Name and Email are required", http.StatusBadRequest)
		return
	}

	tenant := &store.Tenant{
		ID:        "ten_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:      req.Name,
		Email:     req.Email,
		Status:    store.TenantStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateTenant(ctx, tenant); err != nil {
		h.logger.Error("failed to create tenant", "error", err)
		h.httpError(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}
	h.audit.Log(ctx, tenant.ID, audit.ActionCreateTenant, tenant.ID, map[string]any{"name": req.Name})

	rawKey, _, err := h.provisionKey(r, tenant.ID, "default")
	if err != nil {
		h.logger.Error("failed to provision initial key", "tenant_id", tenant.ID, "error", err)
		h.httpError(w, "Failed to create api key", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateTenantResponse{
		ID:     tenant.ID,
		Name:   tenant.Name,
		Email:  tenant.Email,
		Status: string(tenant.Status),
		APIKey: rawKey,
	})
}

// GetTenant handles GET /tenants/{id}.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.store.GetTenantByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Tenant not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get tenant", "error", err)
		h.httpError(w, "Failed to get tenant", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.TenantResponse{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Email:     tenant.Email,
		Status:    string(tenant.Status),
		CreatedAt: tenant.CreatedAt,
	})
}

// UpdateTenant handles PATCH /tenants/{id}.
func (h *Handlers) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := r.PathValue("id")

	var req api.UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" {
		h.httpError(w, "Name and Email are required", http.StatusBadRequest)
		return
	}

	err := h.store.UpdateTenant(ctx, tenantID, req.Name, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Tenant not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to update tenant", "error", err)
		h.httpError(w, "Failed to update tenant", http.StatusInternalServerError)
		return
	}

	h.audit.Log(ctx, tenantID, audit.ActionUpdateTenant, tenantID, map[string]any{"name": req.Name})
	h.GetTenant(w, r)
}

// DeleteTenant handles DELETE /tenants/{id}. Soft delete: the status flips
// to deleted, which invalidates every key the tenant owns at the credential
// gate, while jobs and audit history remain.
func (h *Handlers) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := r.PathValue("id")

	err := h.store.SetTenantStatus(ctx, tenantID, store.TenantStatusDeleted)
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Tenant not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete tenant", "error", err)
		h.httpError(w, "Failed to delete tenant", http.StatusInternalServerError)
		return
	}

	h.audit.Log(ctx, tenantID, audit.ActionDeleteTenant, tenantID, nil)
	h.respondJson(w, http.StatusOK, map[string]string{"status": string(store.TenantStatusDeleted)})
}

// provisionKey generates and stores an API key for a tenant, returning the
// raw credential and the public key id.
func (h *Handlers) provisionKey(r *http.Request, tenantID, name string) (rawKey, keyID string, err error) {
	rawKey, err = auth.GenerateKey(auth.PrefixLive)
	if err != nil {
		return "", "", err
	}
	keyID, err = auth.GenerateKeyID()
	if err != nil {
		return "", "", err
	}

	key := &store.APIKey{
		KeyHash:   auth.HashKey(rawKey),
		KeyID:     keyID,
		TenantID:  tenantID,
		Name:      name,
		Scopes:    []string{store.ScopeJobRun},
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		return "", "", err
	}

	h.audit.Log(r.Context(), tenantID, audit.ActionGenerateKey, keyID, map[string]any{"name": name})
	return rawKey, keyID, nil
}
