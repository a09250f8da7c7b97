package auth

import (
	"context"
	"log/slog"
	"time"

	"outpost/internal/store"
)

// Decision is the outcome of a credential check. A Deny decision carries no
// identity; callers must not distinguish why it was denied.
type Decision struct {
	Allow    bool
	TenantID string
	Scopes   []string
	KeyName  string

	keyHash string
}

// Deny is the zero decision.
var Deny = Decision{}

// KeyResolver is the storage surface the authorizer needs.
type KeyResolver interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error)
	GetTenantByID(ctx context.Context, id string) (*store.Tenant, error)
	TouchAPIKey(ctx context.Context, hash string, at time.Time) error
}

// Authorizer validates opaque bearer credentials against stored key records.
// It has no side effects beyond a best-effort last-used stamp and emits no
// audit entries; only the operation that follows an Allow is audited.
type Authorizer struct {
	resolver KeyResolver
	logger   *slog.Logger
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(resolver KeyResolver, logger *slog.Logger) *Authorizer {
	return &Authorizer{resolver: resolver, logger: logger}
}

// Authorize resolves a raw bearer credential to a tenant identity.
//
// Fail closed: any storage error during lookup yields Deny, never Allow.
// The same Deny is returned for malformed input, unknown digests, revoked
// keys, and inactive tenants, so callers cannot enumerate credentials.
func (a *Authorizer) Authorize(ctx context.Context, credential string) Decision {
	if !WellFormed(credential) {
		return Deny
	}

	hash := HashKey(credential)

	key, err := a.resolver.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		if err != store.ErrNotFound {
			a.logger.Error("api key lookup failed", "error", err)
		}
		return Deny
	}
	if key.Revoked {
		return Deny
	}

	tenant, err := a.resolver.GetTenantByID(ctx, key.TenantID)
	if err != nil {
		if err != store.ErrNotFound {
			a.logger.Error("tenant lookup failed", "error", err)
		}
		return Deny
	}
	if tenant.Status != store.TenantStatusActive {
		return Deny
	}

	return Decision{
		Allow:    true,
		TenantID: key.TenantID,
		Scopes:   key.Scopes,
		KeyName:  key.Name,
		keyHash:  hash,
	}
}

// Touch stamps last use on the key behind an Allow decision. Best effort.
func (a *Authorizer) Touch(ctx context.Context, d Decision) {
	if !d.Allow || d.keyHash == "" {
		return
	}
	if err := a.resolver.TouchAPIKey(ctx, d.keyHash, time.Now().UTC()); err != nil {
		a.logger.Warn("failed to stamp key last use", "error", err)
	}
}

// HasScope reports whether the decision grants the named scope.
func (d Decision) HasScope(scope string) bool {
	for _, s := range d.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
