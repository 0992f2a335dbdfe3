// Package tenantauth resolves a client-supplied API credential to a
// Tenant, enforcing active/suspended state, and caches positive lookups
// for a short TTL (spec §4.2). The teacher's in-process TenantAuthCache
// (internal/auth/tenant_headers.go) is adapted here into a Redis-backed,
// multi-instance-safe cache: a local short-TTL layer backed by a Redis
// pub/sub invalidation channel, so the out-of-core admin flow that
// deactivates a tenant can evict every instance's cache at once.
package tenantauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/store"
)

// InvalidationChannel is the Redis pub/sub channel the out-of-core
// administrative flow publishes a tenant id to on deactivation.
const InvalidationChannel = "tenant:invalidate"

type cacheEntry struct {
	tenant domain.Tenant
	expiry time.Time
}

// Registry implements spec §4.2's authenticate(credential) contract.
type Registry struct {
	store store.Store
	redis *redis.Client
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[[32]byte]cacheEntry // credential hash -> entry
}

// NewRegistry builds a Registry. ttl must stay under 60s per spec §4.2.
func NewRegistry(st store.Store, rdb *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 || ttl >= 60*time.Second {
		ttl = 30 * time.Second
	}
	r := &Registry{
		store: st,
		redis: rdb,
		ttl:   ttl,
		cache: make(map[[32]byte]cacheEntry),
	}
	return r
}

// WatchInvalidations subscribes to the Redis invalidation channel and
// evicts matching cache entries until ctx is cancelled. Run it once per
// process in a goroutine.
func (r *Registry) WatchInvalidations(ctx context.Context) {
	if r.redis == nil {
		return
	}
	sub := r.redis.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				log.Warn().Str("payload", msg.Payload).Msg("tenant invalidation: malformed tenant id")
				continue
			}
			r.evictTenant(id)
		}
	}
}

func (r *Registry) evictTenant(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, entry := range r.cache {
		if entry.tenant.ID == id {
			delete(r.cache, hash)
		}
	}
}

// Authenticate resolves credential to a Tenant, rejecting unauthorized
// or inactive tenants. Credential comparison happens in constant time:
// the incoming credential is hashed and looked up by exact hash equality
// (an indexed, not a scanned, comparison), then the stored digest is
// re-compared with subtle.ConstantTimeCompare as defense in depth against
// any future lookup path that is not a plain indexed equality check.
func (r *Registry) Authenticate(ctx context.Context, credential string) (domain.Tenant, error) {
	if credential == "" {
		return domain.Tenant{}, apierrors.New(apierrors.KindUnauthorized, "missing credential")
	}
	hash := sha256.Sum256([]byte(credential))

	if t, ok := r.fromCache(hash); ok {
		return t, nil
	}

	tenant, err := r.store.TenantByCredentialHash(ctx, hash)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Tenant{}, apierrors.New(apierrors.KindUnauthorized, "invalid credential")
		}
		return domain.Tenant{}, apierrors.Wrap(apierrors.KindStoreUnavailable, "tenant lookup failed", err)
	}

	if subtle.ConstantTimeCompare(tenant.APICredentialHash[:], hash[:]) != 1 {
		// Should be unreachable given the lookup above; guards against a
		// store implementation that returns the wrong row.
		return domain.Tenant{}, apierrors.New(apierrors.KindUnauthorized, "invalid credential")
	}

	if !tenant.Active {
		// Distinct internal error for logging; same response to the
		// client per spec §4.2.
		log.Info().Str("tenant_id", tenant.ID.String()).Msg("authentication rejected: tenant inactive")
		return domain.Tenant{}, apierrors.New(apierrors.KindUnauthorized, "tenant inactive")
	}

	r.setCache(hash, tenant)
	return tenant, nil
}

func (r *Registry) fromCache(hash [32]byte) (domain.Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[hash]
	if !ok || time.Now().After(entry.expiry) {
		return domain.Tenant{}, false
	}
	return entry.tenant, true
}

func (r *Registry) setCache(hash [32]byte, tenant domain.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[hash] = cacheEntry{tenant: tenant, expiry: time.Now().Add(r.ttl)}
}
