package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"outpost/internal/store"
)

func (s *Store) CreateTenant(ctx context.Context, tenant *store.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, email, status, rate_limit, rate_limit_burst, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Email,
		tenant.Status,
		tenant.RateLimit,
		tenant.RateLimitBurst,
		tenant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant %s: %w", tenant.ID, err)
	}
	return nil
}

func (s *Store) GetTenantByID(ctx context.Context, id string) (*store.Tenant, error) {
	query := `
		SELECT id, name, email, status, rate_limit, rate_limit_burst, created_at
		FROM tenants WHERE id = $1
	`

	var t store.Tenant
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Email,
		&t.Status,
		&t.RateLimit,
		&t.RateLimitBurst,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) UpdateTenant(ctx context.Context, id, name, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, email = $2 WHERE id = $3
	`, name, email, id)
	if err != nil {
		return fmt.Errorf("failed to update tenant %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetTenantStatus flips the lifecycle status. Tenant deletion goes through
// here as a soft flip to deleted; jobs, keys, and audit history stay put.
func (s *Store) SetTenantStatus(ctx context.Context, id string, status store.TenantStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set tenant %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
