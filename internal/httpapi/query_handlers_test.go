package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pulsestream/pulsestream/internal/store"
)

func TestHealthRequiresNoCredential(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, "", http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSearchReturnsIngestedEvent(t *testing.T) {
	srv, _, _, credential := testServer(t)

	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", validRequest(nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup ingest failed: %d %s", rec.Code, rec.Body.String())
	}

	searchRec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/search", nil)
	if searchRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", searchRec.Code, searchRec.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(searchRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode search response: %v", err)
	}
	if resp.Total != 1 || len(resp.Events) != 1 {
		t.Fatalf("expected exactly one event for this tenant, got %+v", resp)
	}
}

func TestSearchFiltersByEventID(t *testing.T) {
	srv, _, _, credential := testServer(t)

	wanted := "evt-search-1"
	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", validRequest(&wanted))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup ingest failed: %d %s", rec.Code, rec.Body.String())
	}
	other := "evt-search-2"
	rec = doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", validRequest(&other))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup ingest failed: %d %s", rec.Code, rec.Body.String())
	}

	searchRec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/search?event_id="+wanted, nil)
	if searchRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", searchRec.Code, searchRec.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(searchRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode search response: %v", err)
	}
	if resp.Total != 1 || len(resp.Events) != 1 || resp.Events[0].ExternalID == nil || *resp.Events[0].ExternalID != wanted {
		t.Fatalf("expected exactly the event with event_id=%s, got %+v", wanted, resp)
	}
}

func TestSearchRejectsMalformedLimit(t *testing.T) {
	srv, _, _, credential := testServer(t)
	rec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/search?limit=not-a-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetEventReturnsNotFoundForUnknownID(t *testing.T) {
	srv, _, _, credential := testServer(t)
	rec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetEventReturnsNotFoundForMalformedID(t *testing.T) {
	srv, _, _, credential := testServer(t)
	rec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/not-a-uuid", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a malformed id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatsCountsIngestedEvents(t *testing.T) {
	srv, _, _, credential := testServer(t)

	for i := 0; i < 3; i++ {
		rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", validRequest(nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("setup ingest failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats response: %v", err)
	}
	if stats.TotalInWindow != 3 {
		t.Errorf("expected 3 events in window, got %d", stats.TotalInWindow)
	}
}
