// Package queue is the worker hand-off interface described in spec
// §4.10. The implementation is an external durable queue; the core only
// requires at-least-once delivery and a best-effort per-tenant ordering
// property. Enqueue failures are tolerated by the caller (spec §4.6
// step 5) — this package only reports them, it never retries.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Enqueuer hands an ingested event off to the out-of-core worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID, eventID uuid.UUID) error
}
