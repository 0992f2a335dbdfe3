package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsestream/pulsestream/internal/validate"
)

func doRequest(t *testing.T, srv *Server, credential, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if credential != "" {
		req.Header.Set("X-API-Key", credential)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func validRequest(externalID *string) validate.Request {
	return validate.Request{
		EventType: "api_call",
		EventID:   externalID,
		Title:     "request completed",
		Severity:  "info",
		Source:    validate.SourceRequest{Service: "checkout"},
	}
}

func TestIngestEventRejectsMissingCredential(t *testing.T) {
	srv, _, _, _ := testServer(t)
	rec := doRequest(t, srv, "", http.MethodPost, "/api/v1/ingestion/events", validRequest(nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestEventSucceedsAndIsRetrievable(t *testing.T) {
	srv, _, _, credential := testServer(t)

	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", validRequest(nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.EventID == "" {
		t.Fatalf("expected a successful response with an event id, got %+v", resp)
	}

	getRec := doRequest(t, srv, credential, http.MethodGet, "/api/v1/ingestion/events/"+resp.EventID, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected the ingested event to be retrievable, got %d: %s", getRec.Code, getRec.Body.String())
	}
}

func TestIngestEventRejectsInvalidPayload(t *testing.T) {
	srv, _, _, credential := testServer(t)

	req := validRequest(nil)
	req.EventType = ""
	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Error.Details == nil || len(body.Error.Details.Fields) == 0 {
		t.Errorf("expected field errors in the response, got %+v", body.Error)
	}
}

func TestIngestEventIsIdempotentOnRepeatedExternalID(t *testing.T) {
	srv, _, _, credential := testServer(t)

	externalID := "evt-http-1"
	req := validRequest(&externalID)

	first := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", req)
	second := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events", req)

	var firstResp, secondResp ingestResponse
	json.Unmarshal(first.Body.Bytes(), &firstResp)
	json.Unmarshal(second.Body.Bytes(), &secondResp)

	if firstResp.EventID != secondResp.EventID {
		t.Fatalf("expected the same event id for a repeated external id, got %s and %s", firstResp.EventID, secondResp.EventID)
	}
	if secondResp.Duplicate == nil || !*secondResp.Duplicate {
		t.Errorf("expected the second submission to be marked duplicate, got %+v", secondResp)
	}
}

func TestIngestBatchReturnsPartialSuccess(t *testing.T) {
	srv, _, _, credential := testServer(t)

	batch := validate.BatchRequest{Events: []validate.Request{validRequest(nil), validRequest(nil)}}
	batch.Events[1].EventType = ""

	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events/batch", batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a partially-successful batch, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode batch response: %v", err)
	}
	if resp.SuccessfulCount != 1 || resp.FailedCount != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %+v", resp)
	}
	if resp.Results[0].Error != nil {
		t.Errorf("expected index 0 to succeed, got error %+v", resp.Results[0].Error)
	}
	if resp.Results[1].Error == nil {
		t.Errorf("expected index 1 to carry an error")
	}
}

func TestIngestBatchReturnsBadRequestWhenAllElementsFail(t *testing.T) {
	srv, _, _, credential := testServer(t)

	batch := validate.BatchRequest{Events: []validate.Request{validRequest(nil), validRequest(nil)}}
	batch.Events[0].EventType = ""
	batch.Events[1].EventType = ""

	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events/batch", batch)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when every element fails, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode batch response: %v", err)
	}
	if resp.SuccessfulCount != 0 || resp.FailedCount != 2 {
		t.Fatalf("expected 0 successes and 2 failures, got %+v", resp)
	}
}

func TestIngestBatchRejectsEnvelopeOverLimit(t *testing.T) {
	srv, _, _, credential := testServer(t)

	events := make([]validate.Request, srv.MaxBatchSize+1)
	for i := range events {
		events[i] = validRequest(nil)
	}
	rec := doRequest(t, srv, credential, http.MethodPost, "/api/v1/ingestion/events/batch", validate.BatchRequest{Events: events})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized batch, got %d: %s", rec.Code, rec.Body.String())
	}
}
