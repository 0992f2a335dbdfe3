package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/domain"
)

// uniqueViolationConstraint is the partial unique index name declared in
// migrations/0001_init.sql; matching on it lets InsertEvent tell a
// late-arriving duplicate apart from any other constraint breach.
const uniqueViolationConstraint = "events_tenant_external_id_key"

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pooled connection and verifies connectivity,
// mirroring the teacher's internal/db.Open pool tuning.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) TenantByCredentialHash(ctx context.Context, hash [32]byte) (domain.Tenant, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, slug, contact_email, credential_hash, active,
		       max_events_per_minute, monthly_event_quota, created_at, updated_at
		FROM tenants
		WHERE credential_hash = $1
	`, hash[:])
	return scanTenant(row)
}

func (p *Postgres) TenantByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, slug, contact_email, credential_hash, active,
		       max_events_per_minute, monthly_event_quota, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	var hash []byte
	var quota *int64
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.ContactEmail, &hash, &t.Active,
		&t.MaxEventsPerMinute, &quota, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, err
	}
	copy(t.APICredentialHash[:], hash)
	t.MonthlyEventQuota = quota
	return t, nil
}

// tenantScopedPredicate is embedded into every query below; it is the
// one place the "tenant_id = :tid AND deleted = false" rule lives, per
// spec §9.
const tenantScopedPredicate = "tenant_id = $1 AND deleted = false"

func (p *Postgres) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	row := p.pool.QueryRow(ctx, eventSelectSQL+` WHERE `+tenantScopedPredicate+` AND external_id = $2`,
		tenantID, externalID)
	return scanEvent(row)
}

func (p *Postgres) EventByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Event, error) {
	row := p.pool.QueryRow(ctx, eventSelectSQL+` WHERE `+tenantScopedPredicate+` AND id = $2`,
		tenantID, id)
	return scanEvent(row)
}

const eventSelectSQL = `
	SELECT id, tenant_id, external_id, kind, severity, title, message,
	       occurred_at, received_at,
	       source_service, source_endpoint, source_method, source_version, source_environment,
	       payload, context, metrics, state, deleted
	FROM events
`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		ev                                                 domain.Event
		externalID                                         *string
		endpoint, method, version, environment              *string
		payloadJSON, contextJSON, metricsJSON               []byte
	)
	if err := row.Scan(&ev.ID, &ev.TenantID, &externalID, &ev.Kind, &ev.Severity, &ev.Title, &ev.Message,
		&ev.OccurredAt, &ev.ReceivedAt,
		&ev.Source.Service, &endpoint, &method, &version, &environment,
		&payloadJSON, &contextJSON, &metricsJSON, &ev.State, &ev.Deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, ErrNotFound
		}
		return domain.Event{}, err
	}
	ev.ExternalID = externalID
	if endpoint != nil {
		ev.Source.Endpoint = *endpoint
	}
	if method != nil {
		ev.Source.Method = *method
	}
	if version != nil {
		ev.Source.Version = *version
	}
	if environment != nil {
		ev.Source.Environment = *environment
	}
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &ev.Payload)
	}
	if len(contextJSON) > 0 {
		_ = json.Unmarshal(contextJSON, &ev.Context)
	}
	if len(metricsJSON) > 0 {
		_ = json.Unmarshal(metricsJSON, &ev.Metrics)
	}
	return ev, nil
}

func (p *Postgres) Search(ctx context.Context, tenantID uuid.UUID, filter SearchFilter) (SearchResult, error) {
	where := []string{tenantScopedPredicate}
	args := []any{tenantID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Kind != "" {
		where = append(where, "kind = "+arg(filter.Kind))
	}
	if filter.Severity != "" {
		where = append(where, "severity = "+arg(filter.Severity))
	}
	if filter.Service != "" {
		where = append(where, "source_service = "+arg(filter.Service))
	}
	if filter.Endpoint != "" {
		where = append(where, "source_endpoint = "+arg(filter.Endpoint))
	}
	if filter.StatusCode != nil {
		where = append(where, "(metrics->>'status_code')::int = "+arg(*filter.StatusCode))
	}
	if filter.UserID != "" {
		where = append(where, "context->>'user_id' = "+arg(filter.UserID))
	}
	if filter.ExternalID != "" {
		where = append(where, "external_id = "+arg(filter.ExternalID))
	}
	for k, v := range filter.Tag {
		where = append(where, fmt.Sprintf("context->'tags'->>%s = %s", arg(k), arg(v)))
	}
	if !filter.From.IsZero() {
		where = append(where, "occurred_at >= "+arg(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		where = append(where, "occurred_at <= "+arg(filter.To.UTC()))
	}
	if filter.TextMatch != "" {
		pattern := "%" + filter.TextMatch + "%"
		where = append(where, "(title ILIKE "+arg(pattern)+" OR message ILIKE "+arg(pattern)+")")
	}

	whereSQL := "WHERE " + joinAnd(where)

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	order := "DESC"
	if filter.SortAsc {
		order = "ASC"
	}

	var total int64
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM events "+whereSQL, args...).Scan(&total); err != nil {
		return SearchResult{}, err
	}

	query := eventSelectSQL + whereSQL +
		fmt.Sprintf(" ORDER BY occurred_at %s LIMIT %s OFFSET %s", order, arg(limit), arg(filter.Offset))
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return SearchResult{}, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return SearchResult{}, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Events: events, Total: total}, nil
}

func joinAnd(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}

func (p *Postgres) AggregateStats(ctx context.Context, tenantID uuid.UUID, window StatsWindow) (Stats, error) {
	stats := Stats{
		ByKind:     map[domain.EventKind]int64{},
		BySeverity: map[domain.Severity]int64{},
	}

	rows, err := p.pool.Query(ctx, `
		SELECT kind, severity, count(*)
		FROM events
		WHERE `+tenantScopedPredicate+` AND occurred_at >= $2 AND occurred_at <= $3
		GROUP BY kind, severity
	`, tenantID, window.From.UTC(), window.To.UTC())
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind domain.EventKind
		var sev domain.Severity
		var n int64
		if err := rows.Scan(&kind, &sev, &n); err != nil {
			return Stats{}, err
		}
		stats.ByKind[kind] += n
		stats.BySeverity[sev] += n
		stats.TotalInWindow += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// RunInTransaction implements Store.RunInTransaction. Commit on success,
// rollback on any error fn returns, exactly spec §4.1's guarantee.
func (p *Postgres) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgxTx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txHandle := &pgxTxHandle{tx: pgxTx}
	if err := fn(ctx, txHandle); err != nil {
		if rbErr := pgxTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgxTxHandle implements the narrow Tx interface threaded explicitly
// through the ingestion coordinator (spec §9).
type pgxTxHandle struct {
	tx pgx.Tx
}

func (h *pgxTxHandle) EventByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Event, error) {
	row := h.tx.QueryRow(ctx, eventSelectSQL+` WHERE `+tenantScopedPredicate+` AND external_id = $2`,
		tenantID, externalID)
	return scanEvent(row)
}

func (h *pgxTxHandle) InsertEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	contextJSON, err := json.Marshal(ev.Context)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal context: %w", err)
	}
	metricsJSON, err := json.Marshal(ev.Metrics)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = h.tx.Exec(ctx, `
		INSERT INTO events (
			id, tenant_id, external_id, kind, severity, title, message,
			occurred_at, received_at,
			source_service, source_endpoint, source_method, source_version, source_environment,
			payload, context, metrics, state, deleted
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18, false
		)
	`, ev.ID, ev.TenantID, ev.ExternalID, ev.Kind, ev.Severity, ev.Title, ev.Message,
		ev.OccurredAt, ev.ReceivedAt,
		ev.Source.Service, nullable(ev.Source.Endpoint), nullable(ev.Source.Method),
		nullable(ev.Source.Version), nullable(ev.Source.Environment),
		payloadJSON, contextJSON, metricsJSON, ev.State)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == uniqueViolationConstraint {
			return domain.Event{}, ErrUniqueViolation
		}
		return domain.Event{}, err
	}

	return ev, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
