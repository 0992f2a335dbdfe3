package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream is the Redis Stream a tenant's ingested events are appended to.
// A single stream (rather than one per tenant) keeps the out-of-core
// worker pool's consumer group simple; per-tenant ordering is still
// best-effort since XADD preserves insertion order within the stream.
const Stream = "events:ingested"

// Redis implements Enqueuer with an XADD against a shared stream.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed Enqueuer.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Enqueue(ctx context.Context, tenantID, eventID uuid.UUID) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"tenant_id": tenantID.String(),
			"event_id":  eventID.String(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue event %s for tenant %s: %w", eventID, tenantID, err)
	}
	return nil
}
