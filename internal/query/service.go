// Package query implements the filtered search and aggregate-statistics
// surface described in spec §4.8, always applying the tenant predicate
// that the store adapter enforces internally.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/metrics"
	"github.com/pulsestream/pulsestream/internal/store"
)

// Service exposes Search and Stats over a tenant-isolated store.
type Service struct {
	Store store.Store
}

// Search runs a filtered, paginated query for one tenant.
func (s *Service) Search(ctx context.Context, tenantID uuid.UUID, filter store.SearchFilter) (store.SearchResult, *apierrors.Error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	result, err := s.Store.Search(ctx, tenantID, filter)
	if err != nil {
		return store.SearchResult{}, apierrors.Wrap(apierrors.KindStoreUnavailable, "search failed", err)
	}
	return result, nil
}

// Stats returns aggregate counts for one tenant over a window (spec §4.8).
func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID, window store.StatsWindow) (store.Stats, *apierrors.Error) {
	stats, err := s.Store.AggregateStats(ctx, tenantID, window)
	if err != nil {
		return store.Stats{}, apierrors.Wrap(apierrors.KindStoreUnavailable, "stats failed", err)
	}
	return stats, nil
}

// EventByID fetches one event for a tenant, applying the same isolation
// rule as Search (spec §6's GET /ingestion/events/{id}): an event that
// exists but belongs to another tenant is indistinguishable from one
// that does not exist at all.
func (s *Service) EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, *apierrors.Error) {
	ev, err := s.Store.EventByID(ctx, tenantID, id)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Event{}, apierrors.New(apierrors.KindNotFound, "event not found")
		}
		return domain.Event{}, apierrors.Wrap(apierrors.KindStoreUnavailable, "event lookup failed", err)
	}
	return ev, nil
}
