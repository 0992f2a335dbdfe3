package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/tenantauth"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlationId"
	tenantCtxKey     contextKey = "tenant"
)

// CorrelationMiddleware reads X-Correlation-ID header and adds it to
// context, generating one if the client didn't supply it, so every log
// line for a request can be tied back to the client's own traces.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)
		logger := log.With().Str("correlation_id", correlationID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// TenantAuthMiddleware resolves the X-API-Key header to a Tenant via
// registry and rejects the request if authentication fails (spec §4.2,
// §6). Every ingestion and query route sits behind this middleware.
func TenantAuthMiddleware(registry *tenantauth.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := r.Header.Get("X-API-Key")
			tenant, err := registry.Authenticate(r.Context(), credential)
			if err != nil {
				var apiErr *apierrors.Error
				if !apierrors.As(err, &apiErr) {
					apiErr = apierrors.New(apierrors.KindUnauthorized, "authentication failed")
				}
				writeAPIError(w, r, apiErr)
				return
			}

			ctx := context.WithValue(r.Context(), tenantCtxKey, tenant)
			logger := log.Ctx(ctx).With().Str("tenant_id", tenant.ID.String()).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext retrieves the authenticated Tenant attached by
// TenantAuthMiddleware.
func TenantFromContext(ctx context.Context) (domain.Tenant, bool) {
	tenant, ok := ctx.Value(tenantCtxKey).(domain.Tenant)
	return tenant, ok
}
