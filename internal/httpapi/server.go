package httpapi

import (
	"time"

	"github.com/pulsestream/pulsestream/internal/ingest"
	"github.com/pulsestream/pulsestream/internal/query"
	"github.com/pulsestream/pulsestream/internal/store"
	"github.com/pulsestream/pulsestream/internal/tenantauth"
)

// Server holds every dependency an HTTP handler needs. Session auth
// (internal/session) stays out-of-core per spec.md and has no route here;
// it is exercised directly by its own package tests.
type Server struct {
	Store            store.Store
	Coordinator      *ingest.Coordinator
	BatchCoordinator *ingest.BatchCoordinator
	Query            *query.Service
	TenantAuth       *tenantauth.Registry
	MaxBatchSize     int
	RequestDeadline  time.Duration
}
