// Package ingest implements the ingestion coordinator and batch
// coordinator described in spec §4.6–4.7: the orchestration of
// validate -> rate-limit -> dedup -> transactional persist -> best-effort
// enqueue for one event, and the partial-success wrapper around it for a
// batch.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/dedup"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/metrics"
	"github.com/pulsestream/pulsestream/internal/queue"
	"github.com/pulsestream/pulsestream/internal/ratelimiter"
	"github.com/pulsestream/pulsestream/internal/store"
	"github.com/pulsestream/pulsestream/internal/validate"
)

// Result is the outcome of one successful (or idempotently successful)
// ingestion.
type Result struct {
	EventID   uuid.UUID
	Duplicate bool
}

// Coordinator is the heart of the write path (spec §4.6).
type Coordinator struct {
	Store       store.Store
	Limiter     *ratelimiter.Limiter
	Enqueuer    queue.Enqueuer
	ValidateCfg validate.Config
}

// errLateDuplicate signals that the transaction observed a unique
// violation on (tenant_id, external_id) and aborted; the coordinator
// recovers by reloading the existing row (spec §4.6 step 4c).
type errLateDuplicate struct{}

func (errLateDuplicate) Error() string { return "late-arriving duplicate" }

// Ingest runs one event through the full write path.
func (c *Coordinator) Ingest(ctx context.Context, tenant domain.Tenant, req validate.Request) (Result, *apierrors.Error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	// Step 1: validate.
	ev, verr := validate.Validate(req, c.ValidateCfg, time.Now())
	if verr != nil {
		metrics.IngestTotal.WithLabelValues("validation_error").Inc()
		return Result{}, verr
	}
	ev.TenantID = tenant.ID

	// Step 2: rate limit. The increment stands even on a later duplicate
	// hit or late-arriving duplicate — a duplicate submission still
	// counts as an attempt (spec §4.6 step 3).
	decision, err := c.Limiter.CheckAndIncrement(ctx, tenant.ID, tenant.MaxEventsPerMinute)
	if err != nil {
		var apiErr *apierrors.Error
		apierrors.As(err, &apiErr)
		metrics.IngestTotal.WithLabelValues("store_error").Inc()
		return Result{}, apiErr
	}
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues(tenant.ID.String()).Inc()
		metrics.IngestTotal.WithLabelValues("rate_limited").Inc()
		return Result{}, apierrors.RateLimited(decision.ResetSeconds)
	}

	// Step 3: dedup, only when the client supplied an external id.
	if ev.ExternalID != nil {
		prior, found, derr := dedup.Find(ctx, c.Store, tenant.ID, *ev.ExternalID)
		if derr != nil {
			var apiErr *apierrors.Error
			apierrors.As(derr, &apiErr)
			metrics.IngestTotal.WithLabelValues("store_error").Inc()
			return Result{}, apiErr
		}
		if found {
			metrics.DedupHits.Inc()
			metrics.IngestTotal.WithLabelValues("duplicate").Inc()
			return Result{EventID: prior.ID, Duplicate: true}, nil
		}
	}

	// Step 4: transactional insert, with recovery from a racing insert.
	ev.ID = uuid.New()
	ev.ReceivedAt = time.Now().UTC()
	ev.State = domain.StateQueued

	var existing domain.Event
	txErr := c.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if ev.ExternalID != nil {
			if prior, err := tx.EventByExternalID(ctx, tenant.ID, *ev.ExternalID); err == nil {
				existing = prior
				return errLateDuplicate{}
			} else if err != store.ErrNotFound {
				return apierrors.Wrap(apierrors.KindStoreUnavailable, "duplicate recheck failed", err)
			}
		}

		inserted, err := tx.InsertEvent(ctx, ev)
		if err == store.ErrUniqueViolation {
			// The failed insert leaves the transaction unusable; the
			// existing row is reloaded after the rollback below.
			return errLateDuplicate{}
		}
		if err != nil {
			return apierrors.Wrap(apierrors.KindStoreUnavailable, "insert failed", err)
		}
		ev = inserted
		return nil
	})

	if txErr != nil {
		if _, ok := txErr.(errLateDuplicate); ok {
			if existing.ID == uuid.Nil {
				prior, lookupErr := c.Store.EventByExternalID(ctx, tenant.ID, *ev.ExternalID)
				if lookupErr != nil {
					metrics.IngestTotal.WithLabelValues("store_error").Inc()
					return Result{}, apierrors.Wrap(apierrors.KindConflict, "unique violation without a readable row", lookupErr)
				}
				existing = prior
			}
			metrics.DedupHits.Inc()
			metrics.IngestTotal.WithLabelValues("duplicate").Inc()
			return Result{EventID: existing.ID, Duplicate: true}, nil
		}
		var apiErr *apierrors.Error
		if apierrors.As(txErr, &apiErr) {
			metrics.IngestTotal.WithLabelValues("store_error").Inc()
			return Result{}, apiErr
		}
		metrics.IngestTotal.WithLabelValues("store_error").Inc()
		return Result{}, apierrors.Wrap(apierrors.KindInternal, "ingestion transaction failed", txErr)
	}

	// Step 5: best-effort enqueue, commit already durable.
	if c.Enqueuer != nil {
		if err := c.Enqueuer.Enqueue(ctx, tenant.ID, ev.ID); err != nil {
			metrics.EnqueueFailures.Inc()
			log.Error().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Str("event_id", ev.ID.String()).
				Msg("worker hand-off enqueue failed; event is durable, sweeper will recover it")
		}
	}

	metrics.IngestTotal.WithLabelValues("success").Inc()
	return Result{EventID: ev.ID}, nil
}
