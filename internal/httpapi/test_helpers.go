package httpapi

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/ingest"
	"github.com/pulsestream/pulsestream/internal/query"
	"github.com/pulsestream/pulsestream/internal/ratelimiter"
	"github.com/pulsestream/pulsestream/internal/store"
	"github.com/pulsestream/pulsestream/internal/tenantauth"
	"github.com/pulsestream/pulsestream/internal/validate"
)

// memStore is an in-memory store.Store used to drive handler tests
// end to end without a real database.
type memStore struct {
	mu         sync.Mutex
	tenants    map[uuid.UUID]domain.Tenant
	byHash     map[[32]byte]uuid.UUID
	events     map[uuid.UUID]domain.Event
	byExternal map[string]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		tenants:    make(map[uuid.UUID]domain.Tenant),
		byHash:     make(map[[32]byte]uuid.UUID),
		events:     make(map[uuid.UUID]domain.Event),
		byExternal: make(map[string]uuid.UUID),
	}
}

func (m *memStore) addTenant(t domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	m.byHash[t.APICredentialHash] = t.ID
}

func externalKey(tenantID uuid.UUID, externalID string) string {
	return tenantID.String() + ":" + externalID
}

func (m *memStore) TenantByCredentialHash(ctx context.Context, hash [32]byte) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	return m.tenants[id], nil
}

func (m *memStore) TenantByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (m *memStore) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byExternal[externalKey(tenantID, externalID)]
	if !ok {
		return domain.Event{}, store.ErrNotFound
	}
	return m.events[id], nil
}

func (m *memStore) EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok || ev.TenantID != tenantID {
		return domain.Event{}, store.ErrNotFound
	}
	return ev, nil
}

func (m *memStore) Search(ctx context.Context, tenantID uuid.UUID, filter store.SearchFilter) (store.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Event
	for _, ev := range m.events {
		if ev.TenantID != tenantID || ev.Deleted {
			continue
		}
		if filter.ExternalID != "" && (ev.ExternalID == nil || *ev.ExternalID != filter.ExternalID) {
			continue
		}
		matched = append(matched, ev)
	}
	return store.SearchResult{Events: matched, Total: int64(len(matched))}, nil
}

func (m *memStore) AggregateStats(ctx context.Context, tenantID uuid.UUID, window store.StatsWindow) (store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := store.Stats{ByKind: map[domain.EventKind]int64{}, BySeverity: map[domain.Severity]int64{}}
	for _, ev := range m.events {
		if ev.TenantID != tenantID || ev.Deleted {
			continue
		}
		stats.TotalInWindow++
		stats.ByKind[ev.Kind]++
		stats.BySeverity[ev.Severity]++
	}
	return stats, nil
}

func (m *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return fn(ctx, &memTx{store: m})
}

func (m *memStore) Close() {}

type memTx struct {
	store *memStore
}

func (t *memTx) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	return t.store.EventByExternalID(ctx, tenantID, externalID)
}

func (t *memTx) InsertEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if ev.ExternalID != nil {
		key := externalKey(ev.TenantID, *ev.ExternalID)
		if _, exists := t.store.byExternal[key]; exists {
			return domain.Event{}, store.ErrUniqueViolation
		}
		t.store.byExternal[key] = ev.ID
	}
	t.store.events[ev.ID] = ev
	return ev, nil
}

func sha256Sum(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(ctx context.Context, tenantID, eventID uuid.UUID) error { return nil }

// testServer wires a full Server against in-memory fakes and a
// miniredis-backed rate limiter and tenant registry.
func testServer(t *testing.T) (*Server, *memStore, domain.Tenant, string) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	st := newMemStore()
	credential := "test-credential"
	tenant := domain.Tenant{
		ID:                 uuid.New(),
		Name:               "acme",
		Active:             true,
		MaxEventsPerMinute: 1000,
		APICredentialHash:  sha256Sum(credential),
	}
	st.addTenant(tenant)

	registry := tenantauth.NewRegistry(st, redisClient, time.Second)
	limiter := ratelimiter.New(redisClient, true)
	validateCfg := validate.Config{
		ClockSkewTolerance: 5 * time.Minute,
		RetentionHorizon:   30 * 24 * time.Hour,
		MaxPayloadSize:     10 * 1024 * 1024,
	}
	coordinator := &ingest.Coordinator{Store: st, Limiter: limiter, Enqueuer: noopEnqueuer{}, ValidateCfg: validateCfg}

	srv := &Server{
		Store:            st,
		Coordinator:      coordinator,
		BatchCoordinator: &ingest.BatchCoordinator{Coordinator: coordinator, MaxBatchSize: 1000},
		Query:            &query.Service{Store: st},
		TenantAuth:       registry,
		MaxBatchSize:     1000,
	}

	return srv, st, tenant, credential
}
