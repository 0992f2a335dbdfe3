package tenantauth

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/store"
)

type fakeTenantStore struct {
	byHash map[[32]byte]domain.Tenant
	calls  int
}

func (f *fakeTenantStore) TenantByCredentialHash(ctx context.Context, hash [32]byte) (domain.Tenant, error) {
	f.calls++
	t, ok := f.byHash[hash]
	if !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	return t, nil
}
func (f *fakeTenantStore) TenantByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	return domain.Tenant{}, store.ErrNotFound
}
func (f *fakeTenantStore) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	return domain.Event{}, store.ErrNotFound
}
func (f *fakeTenantStore) EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, error) {
	return domain.Event{}, store.ErrNotFound
}
func (f *fakeTenantStore) Search(ctx context.Context, tenantID uuid.UUID, filter store.SearchFilter) (store.SearchResult, error) {
	return store.SearchResult{}, nil
}
func (f *fakeTenantStore) AggregateStats(ctx context.Context, tenantID uuid.UUID, window store.StatsWindow) (store.Stats, error) {
	return store.Stats{}, nil
}
func (f *fakeTenantStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return nil
}
func (f *fakeTenantStore) Close() {}

func newTestRegistry(t *testing.T, st *fakeTenantStore) (*Registry, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRegistry(st, client, time.Second), client
}

func TestAuthenticateRejectsEmptyCredential(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeTenantStore{byHash: map[[32]byte]domain.Tenant{}})
	_, err := registry.Authenticate(context.Background(), "")
	if !apierrors.Is(err, apierrors.KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownCredential(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeTenantStore{byHash: map[[32]byte]domain.Tenant{}})
	_, err := registry.Authenticate(context.Background(), "not-a-real-credential")
	if !apierrors.Is(err, apierrors.KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized, got %v", err)
	}
}

func TestAuthenticateRejectsInactiveTenant(t *testing.T) {
	cred := "tenant-credential"
	hash := sha256.Sum256([]byte(cred))
	tenant := domain.Tenant{ID: uuid.New(), APICredentialHash: hash, Active: false}
	st := &fakeTenantStore{byHash: map[[32]byte]domain.Tenant{hash: tenant}}
	registry, _ := newTestRegistry(t, st)

	_, err := registry.Authenticate(context.Background(), cred)
	if !apierrors.Is(err, apierrors.KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized for inactive tenant, got %v", err)
	}
}

func TestAuthenticateAcceptsActiveTenantAndCachesResult(t *testing.T) {
	cred := "tenant-credential"
	hash := sha256.Sum256([]byte(cred))
	tenant := domain.Tenant{ID: uuid.New(), APICredentialHash: hash, Active: true}
	st := &fakeTenantStore{byHash: map[[32]byte]domain.Tenant{hash: tenant}}
	registry, _ := newTestRegistry(t, st)

	got, err := registry.Authenticate(context.Background(), cred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != tenant.ID {
		t.Errorf("expected tenant %s, got %s", tenant.ID, got.ID)
	}

	if _, err := registry.Authenticate(context.Background(), cred); err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	if st.calls != 1 {
		t.Errorf("expected exactly 1 store lookup due to caching, got %d", st.calls)
	}
}

func TestWatchInvalidationsEvictsCachedTenant(t *testing.T) {
	cred := "tenant-credential"
	hash := sha256.Sum256([]byte(cred))
	tenant := domain.Tenant{ID: uuid.New(), APICredentialHash: hash, Active: true}
	st := &fakeTenantStore{byHash: map[[32]byte]domain.Tenant{hash: tenant}}
	registry, client := newTestRegistry(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.WatchInvalidations(ctx)

	if _, err := registry.Authenticate(context.Background(), cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.calls != 1 {
		t.Fatalf("expected 1 store lookup, got %d", st.calls)
	}

	if err := client.Publish(context.Background(), InvalidationChannel, tenant.ID.String()).Err(); err != nil {
		t.Fatalf("failed to publish invalidation: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := registry.Authenticate(context.Background(), cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.calls != 2 {
		t.Errorf("expected the cache to be evicted so a second lookup occurs, got %d calls", st.calls)
	}
}
