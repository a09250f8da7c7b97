// Package secrets provides a TTL-cached lookup for tenant credentials that
// get injected into job execution.
package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outpost/internal/store"
)

// DefaultTTL bounds how stale a cached secret may be served.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Manager fronts the secret store with a bounded-staleness cache. Reads
// within the TTL are served from memory; Delete invalidates immediately.
type Manager struct {
	store store.SecretStore
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a Manager. ttl <= 0 uses DefaultTTL.
func NewManager(st store.SecretStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: st,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func cacheKey(tenantID, name string) string {
	return tenantID + "/" + name
}

// Get returns the live secret value for (tenant, name), served from cache
// when fresh enough.
func (m *Manager) Get(ctx context.Context, tenantID, name string) (string, error) {
	key := cacheKey(tenantID, name)

	m.mu.Lock()
	if entry, ok := m.cache[key]; ok && m.now().Sub(entry.fetchedAt) < m.ttl {
		m.mu.Unlock()
		return entry.value, nil
	}
	m.mu.Unlock()

	secret, err := m.store.GetSecret(ctx, tenantID, name)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.cache[key] = cacheEntry{value: secret.Value, fetchedAt: m.now()}
	m.mu.Unlock()

	return secret.Value, nil
}

// Put stores a secret and refreshes the cache entry.
func (m *Manager) Put(ctx context.Context, tenantID, name, value string) error {
	if err := m.store.PutSecret(ctx, &store.Secret{
		TenantID: tenantID,
		Name:     name,
		Value:    value,
	}); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	m.mu.Lock()
	m.cache[cacheKey(tenantID, name)] = cacheEntry{value: value, fetchedAt: m.now()}
	m.mu.Unlock()
	return nil
}

// Delete removes a secret and invalidates its cache entry so the old value
// cannot be served for the remainder of the TTL.
func (m *Manager) Delete(ctx context.Context, tenantID, name string) error {
	if err := m.store.DeleteSecret(ctx, tenantID, name); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.cache, cacheKey(tenantID, name))
	m.mu.Unlock()
	return nil
}
