package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
	"github.com/pulsestream/pulsestream/internal/store"
)

// Search handles GET /ingestion/events/search (spec §4.8, §6).
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing tenant context"))
		return
	}

	filter, err := parseSearchFilter(r)
	if err != nil {
		writeAPIError(w, r, apierrors.New(apierrors.KindInvalidEvent, err.Error()))
		return
	}

	result, apiErr := s.Query.Search(r.Context(), tenant.ID, filter)
	if apiErr != nil {
		writeAPIError(w, r, apiErr)
		return
	}

	events := make([]eventResponse, len(result.Events))
	for i, ev := range result.Events {
		events[i] = toEventResponse(ev)
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Events: events,
		Total:  result.Total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

type searchResponse struct {
	Events []eventResponse `json:"events"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// GetEvent handles GET /ingestion/events/{id} (spec §4.8, §6): a
// cross-tenant lookup is indistinguishable from one that does not
// exist at all.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing tenant context"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, r, apierrors.New(apierrors.KindNotFound, "event not found"))
		return
	}

	ev, apiErr := s.Query.EventByID(r.Context(), tenant.ID, id)
	if apiErr != nil {
		writeAPIError(w, r, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// Stats handles GET /ingestion/stats (spec §4.8, §6).
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing tenant context"))
		return
	}

	window, err := parseStatsWindow(r)
	if err != nil {
		writeAPIError(w, r, apierrors.New(apierrors.KindInvalidEvent, err.Error()))
		return
	}

	stats, apiErr := s.Query.Stats(r.Context(), tenant.ID, window)
	if apiErr != nil {
		writeAPIError(w, r, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health handles GET /health (spec §6).
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func parseSearchFilter(r *http.Request) (store.SearchFilter, error) {
	q := r.URL.Query()
	filter := store.SearchFilter{
		Kind:       domain.EventKind(q.Get("event_type")),
		Severity:   domain.Severity(q.Get("severity")),
		Service:    q.Get("service"),
		Endpoint:   q.Get("endpoint"),
		UserID:     q.Get("user_id"),
		ExternalID: q.Get("event_id"),
		TextMatch:  q.Get("q"),
		Limit:      100,
		SortAsc:    q.Get("sort") == "asc",
	}

	if v := q.Get("status_code"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return store.SearchFilter{}, errInvalid("status_code")
		}
		filter.StatusCode = &n
	}

	if tagParam := q.Get("tag"); tagParam != "" {
		parts := strings.SplitN(tagParam, ":", 2)
		if len(parts) == 2 {
			filter.Tag = map[string]string{parts[0]: parts[1]}
		}
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.SearchFilter{}, errInvalid("from")
		}
		filter.From = t.UTC()
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.SearchFilter{}, errInvalid("to")
		}
		filter.To = t.UTC()
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return store.SearchFilter{}, errInvalid("limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.SearchFilter{}, errInvalid("offset")
		}
		filter.Offset = n
	}

	return filter, nil
}

func parseStatsWindow(r *http.Request) (store.StatsWindow, error) {
	q := r.URL.Query()
	window := store.StatsWindow{To: time.Now().UTC()}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.StatsWindow{}, errInvalid("from")
		}
		window.From = t.UTC()
	} else {
		window.From = window.To.Add(-24 * time.Hour)
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return store.StatsWindow{}, errInvalid("to")
		}
		window.To = t.UTC()
	}

	return window, nil
}

type fieldInvalidError struct{ field string }

func (e fieldInvalidError) Error() string { return "invalid query parameter: " + e.field }

func errInvalid(field string) error { return fieldInvalidError{field: field} }

type eventResponse struct {
	ID         string            `json:"id"`
	ExternalID *string           `json:"event_id,omitempty"`
	EventType  domain.EventKind  `json:"event_type"`
	Severity   domain.Severity   `json:"severity"`
	Title      string            `json:"title"`
	Message    string            `json:"message,omitempty"`
	OccurredAt string            `json:"timestamp"`
	ReceivedAt string            `json:"received_at"`
	Source     domain.Source     `json:"source"`
	Payload    map[string]any    `json:"payload,omitempty"`
	Context    domain.EventContext `json:"context,omitempty"`
	Metrics    domain.Metrics    `json:"metrics,omitempty"`
	State      domain.ProcessingState `json:"processing_state"`
}

func toEventResponse(ev domain.Event) eventResponse {
	return eventResponse{
		ID:         ev.ID.String(),
		ExternalID: ev.ExternalID,
		EventType:  ev.Kind,
		Severity:   ev.Severity,
		Title:      ev.Title,
		Message:    ev.Message,
		OccurredAt: ev.OccurredAt.Format(time.RFC3339Nano),
		ReceivedAt: ev.ReceivedAt.Format(time.RFC3339Nano),
		Source:     ev.Source,
		Payload:    ev.Payload,
		Context:    ev.Context,
		Metrics:    ev.Metrics,
		State:      ev.State,
	}
}
