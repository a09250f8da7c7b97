// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"outpost/internal/audit"
	"outpost/internal/store"
	"outpost/pkg/api"
)

// Store combines the storage interfaces the controller needs.
type Store interface {
	Ping(ctx context.Context) error
	store.TenantStore
	store.APIKeyStore
	store.JobStore
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  Store
	queue  store.Queue
	audit  *audit.Service
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(s Store, q store.Queue, a *audit.Service, log *slog.Logger) *Handlers {
	return &Handlers{store: s, queue: q, audit: a, logger: log}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// limitParam parses ?limit=, falling back to def for absent or bad values.
func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
