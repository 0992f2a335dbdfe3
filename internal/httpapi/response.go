package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/apierrors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// errorBody is the fixed envelope shape described in spec §7: kind and
// message always present, details only as applicable to the kind.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind          apierrors.Kind `json:"kind"`
	Message       string         `json:"message"`
	Details       *errorDetails  `json:"details,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

type errorDetails struct {
	Fields            []apierrors.FieldError `json:"fields,omitempty"`
	RetryAfterSeconds int                    `json:"retry_after_seconds,omitempty"`
}

// statusForKind centralizes the only place in the system that maps an
// error Kind to an HTTP status code (spec §7). A conflict kind reaching
// here means the ingestion coordinator's idempotent-retry handling did
// not catch it, so it surfaces as internal rather than 409.
func statusForKind(kind apierrors.Kind) int {
	switch kind {
	case apierrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apierrors.KindInvalidEvent:
		return http.StatusBadRequest
	case apierrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apierrors.KindNotFound:
		return http.StatusNotFound
	case apierrors.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apierrors.KindConflict, apierrors.KindCacheUnavailable, apierrors.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError writes a *apierrors.Error as the fixed error envelope,
// setting Retry-After for rate-limited responses (spec §7).
func writeAPIError(w http.ResponseWriter, r *http.Request, err *apierrors.Error) {
	status := statusForKind(err.Kind)

	var details *errorDetails
	if len(err.Fields) > 0 || err.RetryAfterSeconds > 0 {
		details = &errorDetails{Fields: err.Fields, RetryAfterSeconds: err.RetryAfterSeconds}
	}

	if err.Kind == apierrors.KindRateLimited && err.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds))
	}

	if status >= 500 {
		log.Error().Str("kind", string(err.Kind)).Str("path", r.URL.Path).Msg(err.Message)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Kind:          err.Kind,
		Message:       err.Message,
		Details:       details,
		CorrelationID: GetCorrelationID(r.Context()),
	}})
}
