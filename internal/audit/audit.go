// Package audit records state-changing actions to the append-only audit log.
package audit

import (
	"context"
	"log/slog"
	"time"

	"outpost/internal/logger"
	"outpost/internal/store"
)

// DefaultRetentionDays is how long entries live before storage-layer expiry.
const DefaultRetentionDays = 90

// Audit action tags. One per state-changing operation.
const (
	ActionCreateTenant = "CREATE_TENANT"
	ActionUpdateTenant = "UPDATE_TENANT"
	ActionDeleteTenant = "DELETE_TENANT"
	ActionGenerateKey  = "GENERATE_KEY"
	ActionRevokeKey    = "REVOKE_KEY"
	ActionSubmitJob    = "SUBMIT_JOB"
	ActionCancelJob    = "CANCEL_JOB"
	ActionStartJob     = "START_JOB"
	ActionJobSuccess   = "JOB_SUCCESS"
	ActionJobFailed    = "JOB_FAILED"
	ActionJobTimeout   = "JOB_TIMEOUT"
	ActionJobError     = "JOB_ERROR"
)

// Service writes and reads audit entries. Writes are failure-isolated: the
// audit trail is a write-only sink, so a failed append is logged and dropped
// rather than failing the operation it describes.
type Service struct {
	store         store.AuditStore
	logger        *slog.Logger
	retentionDays int
}

// Option configures a Service.
type Option func(*Service)

// WithRetentionDays overrides the retention window stamped on new entries.
func WithRetentionDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// NewService creates an audit Service.
func NewService(st store.AuditStore, log *slog.Logger, opts ...Option) *Service {
	s := &Service{store: st, logger: log, retentionDays: DefaultRetentionDays}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log appends one entry for (tenant, action, resource). Request context
// (request id) is picked up from ctx when present. Never returns an error.
func (s *Service) Log(ctx context.Context, tenantID, action, resource string, metadata map[string]any) {
	now := time.Now().UTC()
	entry := &store.AuditEntry{
		TenantID:  tenantID,
		Timestamp: now,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		RequestID: logger.RequestIDFromContext(ctx),
		ExpiresAt: now.Add(time.Duration(s.retentionDays) * 24 * time.Hour),
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			"tenant_id", tenantID,
			"action", action,
			"resource", resource,
			"error", err,
		)
	}
}

// GetTenantAudit returns a tenant's entries newest-first, at most limit
// (default 50).
func (s *Service) GetTenantAudit(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListAudit(ctx, tenantID, limit)
}
