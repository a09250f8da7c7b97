package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"outpost/internal/store"
)

func (s *Store) CreateAPIKey(ctx context.Context, key *store.APIKey) error {
	query := `
		INSERT INTO api_keys (key_hash, key_id, tenant_id, name, scopes, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		key.KeyHash,
		key.KeyID,
		key.TenantID,
		key.Name,
		pq.Array(key.Scopes),
		key.Revoked,
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key %s: %w", key.KeyID, err)
	}
	return nil
}

// GetAPIKeyByHash resolves a credential by its SHA-256 digest. This is the
// secondary-index lookup behind every authorization decision.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error) {
	query := `
		SELECT key_hash, key_id, tenant_id, name, scopes, revoked, created_at, last_used
		FROM api_keys WHERE key_hash = $1
	`

	var k store.APIKey
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&k.KeyHash,
		&k.KeyID,
		&k.TenantID,
		&k.Name,
		pq.Array(&k.Scopes),
		&k.Revoked,
		&k.CreatedAt,
		&k.LastUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key by hash: %w", err)
	}
	return &k, nil
}

// RevokeAPIKey flips the revoked flag. The record itself is never removed.
func (s *Store) RevokeAPIKey(ctx context.Context, tenantID, keyID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked = TRUE WHERE tenant_id = $1 AND key_id = $2
	`, tenantID, keyID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key %s: %w", keyID, err)
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

// TouchAPIKey records last use. Callers fire and forget.
func (s *Store) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = $1 WHERE key_hash = $2
	`, at, hash)
	return err
}
