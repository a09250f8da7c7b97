package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"outpost/internal/store"
)

type fakeResolver struct {
	keys    map[string]*store.APIKey
	tenants map[string]*store.Tenant
	keyErr  error
	tenErr  error

	touched []string
}

func (f *fakeResolver) GetAPIKeyByHash(ctx context.Context, hash string) (*store.APIKey, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	key, ok := f.keys[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return key, nil
}

func (f *fakeResolver) GetTenantByID(ctx context.Context, id string) (*store.Tenant, error) {
	if f.tenErr != nil {
		return nil, f.tenErr
	}
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tenant, nil
}

func (f *fakeResolver) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	f.touched = append(f.touched, hash)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthorizer(resolver *fakeResolver) *Authorizer {
	return NewAuthorizer(resolver, discardLogger())
}

const validKey = "op_live_0123456789abcdef0123456789abcdef"

func resolverWithKey(revoked bool, status store.TenantStatus) *fakeResolver {
	return &fakeResolver{
		keys: map[string]*store.APIKey{
			HashKey(validKey): {
				KeyHash:  HashKey(validKey),
				KeyID:    "key_deadbeef",
				TenantID: "ten_abc",
				Name:     "default",
				Scopes:   []string{store.ScopeJobRun},
				Revoked:  revoked,
			},
		},
		tenants: map[string]*store.Tenant{
			"ten_abc": {ID: "ten_abc", Status: status},
		},
	}
}

func TestAuthorize_Allow(t *testing.T) {
	a := newTestAuthorizer(resolverWithKey(false, store.TenantStatusActive))

	d := a.Authorize(context.Background(), validKey)
	if !d.Allow {
		t.Fatal("expected Allow")
	}
	if d.TenantID != "ten_abc" {
		t.Errorf("got tenant %s, want ten_abc", d.TenantID)
	}
	if !d.HasScope(store.ScopeJobRun) {
		t.Error("expected job:run scope")
	}
}

func TestAuthorize_Deny(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *fakeResolver
		credential string
	}{
		{
			name:       "malformed prefix",
			resolver:   resolverWithKey(false, store.TenantStatusActive),
			credential: "sk_live_whatever",
		},
		{
			name:       "empty credential",
			resolver:   resolverWithKey(false, store.TenantStatusActive),
			credential: "",
		},
		{
			name:       "unknown digest",
			resolver:   resolverWithKey(false, store.TenantStatusActive),
			credential: "op_live_ffffffffffffffffffffffffffffffff",
		},
		{
			name:       "revoked key",
			resolver:   resolverWithKey(true, store.TenantStatusActive),
			credential: validKey,
		},
		{
			name:       "suspended tenant",
			resolver:   resolverWithKey(false, store.TenantStatusSuspended),
			credential: validKey,
		},
		{
			name:       "deleted tenant",
			resolver:   resolverWithKey(false, store.TenantStatusDeleted),
			credential: validKey,
		},
		{
			name: "key lookup storage error",
			resolver: &fakeResolver{
				keyErr: errors.New("connection refused"),
			},
			credential: validKey,
		},
		{
			name: "tenant lookup storage error",
			resolver: func() *fakeResolver {
				f := resolverWithKey(false, store.TenantStatusActive)
				f.tenErr = errors.New("connection refused")
				return f
			}(),
			credential: validKey,
		},
		{
			name: "tenant record missing",
			resolver: func() *fakeResolver {
				f := resolverWithKey(false, store.TenantStatusActive)
				f.tenants = nil
				return f
			}(),
			credential: validKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuthorizer(tt.resolver)

			d := a.Authorize(context.Background(), tt.credential)
			if d.Allow {
				t.Error("expected Deny")
			}
			// Uniform denial: no identity may leak.
			if d.TenantID != "" || len(d.Scopes) != 0 || d.KeyName != "" {
				t.Errorf("Deny decision leaked identity: %+v", d)
			}
		})
	}
}

func TestTouch_StampsOnlyAllowedDecisions(t *testing.T) {
	resolver := resolverWithKey(false, store.TenantStatusActive)
	a := newTestAuthorizer(resolver)

	d := a.Authorize(context.Background(), validKey)
	a.Touch(context.Background(), d)
	if len(resolver.touched) != 1 {
		t.Fatalf("expected 1 touch, got %d", len(resolver.touched))
	}
	if resolver.touched[0] != HashKey(validKey) {
		t.Errorf("touched wrong hash %s", resolver.touched[0])
	}

	a.Touch(context.Background(), Deny)
	if len(resolver.touched) != 1 {
		t.Error("Deny decision must not stamp last use")
	}
}

func TestHasScope(t *testing.T) {
	d := Decision{Allow: true, Scopes: []string{"job:run", "audit:read"}}

	if !d.HasScope("job:run") {
		t.Error("expected job:run")
	}
	if d.HasScope("admin") {
		t.Error("did not expect admin")
	}
	if Deny.HasScope("job:run") {
		t.Error("Deny has no scopes")
	}
}
