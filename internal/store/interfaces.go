package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every store implementation.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional write's precondition does
	// not hold. A single attempt is made; callers treat the conflict as a
	// legitimate outcome, not a retry trigger.
	ErrConflict = errors.New("store: status precondition failed")

	// ErrInvalidTransition is returned when the requested status change is
	// not an edge of the job state machine, regardless of the stored value.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// TerminalUpdate carries the fields of an atomic terminal status write.
// Status, completion time, and the optional error land in one statement so
// observers never see a terminal job without a completion timestamp.
type TerminalUpdate struct {
	CompletedAt  time.Time
	ErrorMessage *string
	Output       *string
}

// TenantStore handles tenant records.
type TenantStore interface {
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenantByID(ctx context.Context, id string) (*Tenant, error)
	UpdateTenant(ctx context.Context, id, name, email string) error

	// SetTenantStatus flips the lifecycle status. Deletion is soft.
	SetTenantStatus(ctx context.Context, id string, status TenantStatus) error
}

// APIKeyStore handles credential records, looked up by digest.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *APIKey) error

	// GetAPIKeyByHash resolves a key by the digest of its raw credential.
	GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error)

	// RevokeAPIKey flips the revoked flag by key id within a tenant.
	RevokeAPIKey(ctx context.Context, tenantID, keyID string) error

	// TouchAPIKey records last use. Best effort; callers ignore the error.
	TouchAPIKey(ctx context.Context, hash string, at time.Time) error
}

// JobStore handles job persistence. It is the single authority on job state;
// every mutation after the initial insert is a conditional write guarded by
// the expected current status.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, tenantID, jobID string) (*Job, error)

	// ListJobs returns the tenant's jobs newest-first, at most limit.
	ListJobs(ctx context.Context, tenantID string, limit int) ([]Job, error)

	// StartJob transitions pending -> running and stamps StartedAt.
	// Returns ErrConflict if the job is no longer pending.
	StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error

	// CancelJob transitions pending -> cancelled.
	// Returns ErrConflict if the job is no longer pending.
	CancelJob(ctx context.Context, tenantID, jobID string) error

	// FinishJob performs the atomic terminal write running -> to, where to is
	// success or failed. Returns ErrConflict if the job is not running and
	// ErrInvalidTransition if to is not a terminal state reachable from
	// running.
	FinishJob(ctx context.Context, tenantID, jobID string, to JobStatus, upd TerminalUpdate) error
}

// AuditStore is the append-only sink for audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// ListAudit returns entries for a tenant newest-first, at most limit.
	ListAudit(ctx context.Context, tenantID string, limit int) ([]AuditEntry, error)
}

// SecretStore is the keyed lookup behind the secrets manager cache.
type SecretStore interface {
	PutSecret(ctx context.Context, secret *Secret) error
	GetSecret(ctx context.Context, tenantID, name string) (*Secret, error)
	DeleteSecret(ctx context.Context, tenantID, name string) error
}
