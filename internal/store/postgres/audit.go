package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"outpost/internal/store"
)

// AppendAudit inserts one audit entry. There is no update or delete path for
// audit_log anywhere in the codebase; expiry is the database's job via
// expires_at.
func (s *Store) AppendAudit(ctx context.Context, entry *store.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (tenant_id, ts, action, resource, metadata, request_id, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.TenantID,
		entry.Timestamp,
		entry.Action,
		entry.Resource,
		metadata,
		nullable(entry.RequestID),
		nullable(entry.IPAddress),
		nullable(entry.UserAgent),
		entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns a tenant's entries newest-first, at most limit.
func (s *Store) ListAudit(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, ts, action, resource, metadata,
		       COALESCE(request_id, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), expires_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []store.AuditEntry
	for rows.Next() {
		var e store.AuditEntry
		var metadata []byte
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.Timestamp,
			&e.Action,
			&e.Resource,
			&metadata,
			&e.RequestID,
			&e.IPAddress,
			&e.UserAgent,
			&e.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
