package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/validate"
)

// ItemOutcome is one element's result within a batch response (spec §4.7).
type ItemOutcome struct {
	Index     int
	Success   bool
	EventID   uuid.UUID
	Duplicate bool
	Error     *apierrors.Error
}

// BatchResult is the full partial-success response for a batch.
type BatchResult struct {
	Outcomes        []ItemOutcome
	SuccessfulCount int
	FailedCount     int
}

// BatchCoordinator wraps Coordinator with per-element partial-success
// accounting (spec §4.7).
type BatchCoordinator struct {
	Coordinator  *Coordinator
	MaxBatchSize int
}

// IngestBatch processes every element independently: a validation
// failure on one element never prevents others from being processed.
// Exceeding MaxBatchSize is rejected wholesale at the envelope, before
// any element is processed (spec §8 property 12).
func (b *BatchCoordinator) IngestBatch(ctx context.Context, tenant domain.Tenant, reqs []validate.Request) (BatchResult, *apierrors.Error) {
	if len(reqs) > b.MaxBatchSize {
		return BatchResult{}, apierrors.New(apierrors.KindInvalidEvent,
			fmt.Sprintf("batch of %d events exceeds the maximum of %d", len(reqs), b.MaxBatchSize))
	}

	result := BatchResult{Outcomes: make([]ItemOutcome, len(reqs))}
	for i, req := range reqs {
		res, err := b.Coordinator.Ingest(ctx, tenant, req)
		if err != nil {
			result.Outcomes[i] = ItemOutcome{Index: i, Success: false, Error: err}
			result.FailedCount++
			continue
		}
		result.Outcomes[i] = ItemOutcome{
			Index:     i,
			Success:   true,
			EventID:   res.EventID,
			Duplicate: res.Duplicate,
		}
		result.SuccessfulCount++
	}
	return result, nil
}
