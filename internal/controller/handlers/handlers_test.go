package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"outpost/internal/audit"
	"outpost/internal/auth"
	"outpost/internal/controller/middleware"
	"outpost/internal/store"
)

// mockStore is an in-memory Store for handler tests. Individual error hooks
// force failures per call site.
type mockStore struct {
	mu      sync.Mutex
	tenants map[string]*store.Tenant
	keys    map[string]*store.APIKey
	jobs    map[string]*store.Job

	createJobErr error
	cancelErr    error
	pingErr      error
}

func newMockStore() *mockStore {
	return &mockStore{
		tenants: make(map[string]*store.Tenant),
		keys:    make(map[string]*store.APIKey),
		jobs:    make(map[string]*store.Job),
	}
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockStore) CreateTenant(ctx context.Context, t *store.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *mockStore) GetTenantByID(ctx context.Context, id string) (*store.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (m *mockStore) UpdateTenant(ctx context.Context, id, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Name, t.Email = name, email
	return nil
}

func (m *mockStore) SetTenantStatus(ctx context.Context, id string, status store.TenantStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *mockStore) CreateAPIKey(ctx context.Context, k *store.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[k.KeyID] = k
	return nil
}

func (m *mockStore) GetAPIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == hash {
			return k, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) RevokeAPIKey(ctx context.Context, tenantID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.TenantID != tenantID {
		return store.ErrNotFound
	}
	k.Revoked = true
	return nil
}

func (m *mockStore) TouchAPIKey(ctx context.Context, hash string, at time.Time) error { return nil }

func (m *mockStore) CreateJob(ctx context.Context, j *store.Job) error {
	if m.createJobErr != nil {
		return m.createJobErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.JobID] = j
	return nil
}

func (m *mockStore) GetJob(ctx context.Context, tenantID, jobID string) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return j, nil
}

func (m *mockStore) ListJobs(ctx context.Context, tenantID string, limit int) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Job
	for _, j := range m.jobs {
		if j.TenantID == tenantID && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *mockStore) StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error {
	return nil
}

func (m *mockStore) CancelJob(ctx context.Context, tenantID, jobID string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.TenantID != tenantID || j.Status != store.JobStatusPending {
		return store.ErrConflict
	}
	j.Status = store.JobStatusCancelled
	return nil
}

func (m *mockStore) FinishJob(ctx context.Context, tenantID, jobID string, to store.JobStatus, upd store.TerminalUpdate) error {
	return nil
}

// mockQueue records published messages and can simulate broker failure.
type mockQueue struct {
	mu         sync.Mutex
	published  []store.MessageAttributes
	enqueueErr error
}

func (q *mockQueue) Enqueue(ctx context.Context, payload json.RawMessage, attrs store.MessageAttributes) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, attrs)
	return nil
}

func (q *mockQueue) Receive(ctx context.Context, wait time.Duration) (*store.Message, error) {
	return nil, nil
}

func (q *mockQueue) Delete(ctx context.Context, receipt int64) error { return nil }

func (q *mockQueue) ExtendVisibility(ctx context.Context, receipt int64, until time.Time) error {
	return nil
}

func (q *mockQueue) Count(ctx context.Context) (int64, error) { return 0, nil }

// recordingAuditStore keeps appended entries in memory.
type recordingAuditStore struct {
	mu      sync.Mutex
	entries []*store.AuditEntry
}

func (r *recordingAuditStore) AppendAudit(ctx context.Context, e *store.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingAuditStore) ListAudit(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.AuditEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			out = append(out, *r.entries[i])
		}
	}
	return out, nil
}

func (r *recordingAuditStore) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(st *mockStore, q *mockQueue) (*Handlers, *recordingAuditStore) {
	rec := &recordingAuditStore{}
	return New(st, q, audit.NewService(rec, discardLogger()), discardLogger()), rec
}

// withIdentity attaches an authorized tenant identity like the auth
// middleware would.
func withIdentity(r *http.Request, tenantID string, scopes ...string) *http.Request {
	if scopes == nil {
		scopes = []string{store.ScopeJobRun}
	}
	d := auth.Decision{Allow: true, TenantID: tenantID, Scopes: scopes}
	return r.WithContext(middleware.NewContextWithIdentity(r.Context(), d))
}
