package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/store"
)

type fakeStore struct {
	searchFilter store.SearchFilter
	searchResult store.SearchResult
	searchErr    error

	statsWindow store.StatsWindow
	statsResult store.Stats
	statsErr    error

	eventByID    domain.Event
	eventByIDErr error
}

func (f *fakeStore) TenantByCredentialHash(ctx context.Context, hash [32]byte) (domain.Tenant, error) {
	return domain.Tenant{}, nil
}
func (f *fakeStore) TenantByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	return domain.Tenant{}, nil
}
func (f *fakeStore) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	return domain.Event{}, store.ErrNotFound
}
func (f *fakeStore) EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, error) {
	return f.eventByID, f.eventByIDErr
}
func (f *fakeStore) Search(ctx context.Context, tenantID uuid.UUID, filter store.SearchFilter) (store.SearchResult, error) {
	f.searchFilter = filter
	return f.searchResult, f.searchErr
}
func (f *fakeStore) AggregateStats(ctx context.Context, tenantID uuid.UUID, window store.StatsWindow) (store.Stats, error) {
	f.statsWindow = window
	return f.statsResult, f.statsErr
}
func (f *fakeStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return nil
}
func (f *fakeStore) Close() {}

func TestSearchClampsLimitAndOffset(t *testing.T) {
	fs := &fakeStore{searchResult: store.SearchResult{Total: 0}}
	svc := &Service{Store: fs}

	_, err := svc.Search(context.Background(), uuid.New(), store.SearchFilter{Limit: 5000, Offset: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.searchFilter.Limit != 100 {
		t.Errorf("expected clamped limit of 100, got %d", fs.searchFilter.Limit)
	}
	if fs.searchFilter.Offset != 0 {
		t.Errorf("expected clamped offset of 0, got %d", fs.searchFilter.Offset)
	}
}

func TestSearchPropagatesStoreError(t *testing.T) {
	fs := &fakeStore{searchErr: context.DeadlineExceeded}
	svc := &Service{Store: fs}

	_, err := svc.Search(context.Background(), uuid.New(), store.SearchFilter{Limit: 10})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestEventByIDNotFoundMapsToNotFoundKind(t *testing.T) {
	fs := &fakeStore{eventByIDErr: store.ErrNotFound}
	svc := &Service{Store: fs}

	_, err := svc.EventByID(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Kind != apierrors.KindNotFound {
		t.Errorf("expected KindNotFound, got %s", err.Kind)
	}
}

func TestEventByIDReturnsTenantScopedEvent(t *testing.T) {
	tenantID := uuid.New()
	want := domain.Event{ID: uuid.New(), TenantID: tenantID, Title: "ok"}
	fs := &fakeStore{eventByID: want}
	svc := &Service{Store: fs}

	got, err := svc.EventByID(context.Background(), tenantID, want.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("expected event %s, got %s", want.ID, got.ID)
	}
}

func TestStatsPropagatesWindow(t *testing.T) {
	now := time.Now()
	fs := &fakeStore{statsResult: store.Stats{TotalInWindow: 42}}
	svc := &Service{Store: fs}

	window := store.StatsWindow{From: now.Add(-time.Hour), To: now}
	stats, err := svc.Stats(context.Background(), uuid.New(), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fs.statsWindow.From.Equal(window.From) || !fs.statsWindow.To.Equal(window.To) {
		t.Errorf("expected window %+v to reach the store, got %+v", window, fs.statsWindow)
	}
	if stats.TotalInWindow != 42 {
		t.Errorf("expected 42, got %d", stats.TotalInWindow)
	}
}
