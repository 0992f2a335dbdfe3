// Package dedup implements the single indexed lookup described in spec
// §4.5: given a tenant and a client-supplied external id, find the prior
// event if one exists.
package dedup

import (
	"context"

	"github.com/google/uuid"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/store"
)

// Find returns the prior event for (tenantID, externalID), or
// (domain.Event{}, false, nil) if none exists.
func Find(ctx context.Context, st store.Store, tenantID uuid.UUID, externalID string) (domain.Event, bool, error) {
	ev, err := st.EventByExternalID(ctx, tenantID, externalID)
	if err == nil {
		return ev, true, nil
	}
	if err == store.ErrNotFound {
		return domain.Event{}, false, nil
	}
	return domain.Event{}, false, apierrors.Wrap(apierrors.KindStoreUnavailable, "duplicate lookup failed", err)
}
