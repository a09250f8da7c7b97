// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"outpost/internal/audit"
	"outpost/internal/auth"
	"outpost/internal/controller/handlers"
	"outpost/internal/controller/middleware"
	"outpost/internal/store"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// Deps bundles what the server needs.
type Deps struct {
	Store          handlers.Store
	Queue          store.Queue
	Audit          *audit.Service
	Authorizer     *auth.Authorizer
	SystemSecret   string
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// New creates a new controller server.
func New(addr string, deps Deps) *Server {
	h := handlers.New(deps.Store, deps.Queue, deps.Audit, deps.Logger)

	authMW := middleware.AuthMiddleware(deps.Authorizer)
	rateMW := middleware.RateLimitMiddleware(deps.Store)
	adminMW := middleware.RequireInternalAuth(deps.SystemSecret)

	tenant := func(next http.HandlerFunc) http.Handler {
		return authMW(rateMW(next))
	}
	admin := func(next http.HandlerFunc) http.Handler {
		return adminMW(next)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", deps.MetricsHandler)
	}

	// Admin surface, guarded by the system secret.
	mux.Handle("POST /tenants", admin(h.CreateTenant))
	mux.Handle("GET /tenants/{id}", admin(h.GetTenant))
	mux.Handle("PATCH /tenants/{id}", admin(h.UpdateTenant))
	mux.Handle("DELETE /tenants/{id}", admin(h.DeleteTenant))
	mux.Handle("POST /tenants/{id}/keys", admin(h.CreateKey))
	mux.Handle("DELETE /tenants/{id}/keys/{key_id}", admin(h.RevokeKey))

	// Tenant surface, authenticated by API key.
	mux.Handle("POST /jobs", tenant(h.SubmitJob))
	mux.Handle("GET /jobs", tenant(h.ListJobs))
	mux.Handle("GET /jobs/{id}", tenant(h.GetJob))
	mux.Handle("DELETE /jobs/{id}", tenant(h.CancelJob))
	mux.Handle("GET /audit", tenant(h.GetAudit))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
