package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"outpost/internal/store"
)

// PutSecret creates or replaces a tenant secret.
func (s *Store) PutSecret(ctx context.Context, secret *store.Secret) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_secrets (tenant_id, name, value, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, secret.TenantID, secret.Name, secret.Value)
	if err != nil {
		return fmt.Errorf("failed to put secret %s: %w", secret.Name, err)
	}
	return nil
}

func (s *Store) GetSecret(ctx context.Context, tenantID, name string) (*store.Secret, error) {
	var sec store.Secret
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, value, created_at, updated_at
		FROM tenant_secrets WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&sec.TenantID, &sec.Name, &sec.Value, &sec.CreatedAt, &sec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	return &sec, nil
}

func (s *Store) DeleteSecret(ctx context.Context, tenantID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tenant_secrets WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", name, err)
	}
	return nil
}
