// Package store is the sole typed access point to the relational store.
// It has no cache operations: the rate limiter, tenant registry and
// worker hand-off use their own Redis clients. Every tenant-scoped
// operation embeds the tenant_id/deleted predicate internally; callers
// (including the HTTP surface) may never query the database directly
// (spec §9 "Multi-tenant isolation").
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pulsestream/pulsestream/internal/domain"
)

// SearchFilter narrows a Search call. Zero values mean "unconstrained".
type SearchFilter struct {
	Kind       domain.EventKind
	Severity   domain.Severity
	Service    string
	Endpoint   string
	StatusCode *int
	UserID     string
	ExternalID string // client-supplied event_id (spec §4.8 "search by event_id")
	Tag        map[string]string
	From, To   time.Time
	TextMatch  string
	Limit      int
	Offset     int
	SortAsc    bool
}

// SearchResult is a page of events plus a total-matches estimate.
type SearchResult struct {
	Events []domain.Event
	Total  int64
}

// StatsWindow bounds the aggregate-stats query.
type StatsWindow struct {
	From, To time.Time
}

// Stats is the fixed response shape for aggregate counts.
type Stats struct {
	TotalInWindow int64
	ByKind        map[domain.EventKind]int64
	BySeverity    map[domain.Severity]int64
}

// ErrNotFound is returned by lookups that find nothing. It is not an
// *apierrors.Error itself so that callers can decide how to wrap it;
// store is a low-level layer and stays independent of the API error
// taxonomy.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// ErrUniqueViolation is returned by InsertEvent when the (tenant_id,
// external_id) partial unique index rejects the insert (spec §4.1).
var ErrUniqueViolation = errUniqueViolation{}

type errUniqueViolation struct{}

func (errUniqueViolation) Error() string { return "unique violation" }

// Tx is an opaque transaction handle threaded explicitly through the
// ingestion coordinator (spec §9 "Session-scoped database handle").
type Tx interface {
	InsertEvent(ctx context.Context, ev domain.Event) (domain.Event, error)
	EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error)
}

// Store is the full contract described in spec §4.1.
type Store interface {
	TenantByCredentialHash(ctx context.Context, hash [32]byte) (domain.Tenant, error)
	TenantByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error)

	EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error)
	EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, error)
	Search(ctx context.Context, tenantID uuid.UUID, filter SearchFilter) (SearchResult, error)
	AggregateStats(ctx context.Context, tenantID uuid.UUID, window StatsWindow) (Stats, error)

	// RunInTransaction executes fn with a transaction handle, committing
	// on success and rolling back on any error fn returns.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close()
}
