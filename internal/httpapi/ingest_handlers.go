package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/validate"
)

// IngestEvent handles POST /ingestion/events (spec §6, §4.6).
func (s *Server) IngestEvent(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing tenant context"))
		return
	}

	var req validate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, apierrors.New(apierrors.KindInvalidEvent, "malformed request body"))
		return
	}

	result, err := s.Coordinator.Ingest(r.Context(), tenant, req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	resp := ingestResponse{
		Success:    true,
		EventID:    result.EventID.String(),
		IngestedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if result.Duplicate {
		resp.Duplicate = &result.Duplicate
	}
	writeJSON(w, http.StatusOK, resp)
}

type ingestResponse struct {
	Success    bool   `json:"success"`
	EventID    string `json:"event_id"`
	IngestedAt string `json:"ingested_at"`
	Duplicate  *bool  `json:"duplicate,omitempty"`
}

// IngestBatch handles POST /ingestion/events/batch (spec §6, §4.7).
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeAPIError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing tenant context"))
		return
	}

	var req validate.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, r, apierrors.New(apierrors.KindInvalidEvent, "malformed request body"))
		return
	}

	result, err := s.BatchCoordinator.IngestBatch(r.Context(), tenant, req.Events)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	outcomes := make([]batchOutcome, len(result.Outcomes))
	for i, o := range result.Outcomes {
		outcome := batchOutcome{Index: o.Index, Success: o.Success}
		if o.Success {
			outcome.EventID = o.EventID.String()
			if o.Duplicate {
				outcome.Duplicate = &o.Duplicate
			}
		} else {
			outcome.Error = &errorDetail{Kind: o.Error.Kind, Message: o.Error.Message}
			if len(o.Error.Fields) > 0 {
				outcome.Error.Details = &errorDetails{Fields: o.Error.Fields}
			}
		}
		outcomes[i] = outcome
	}

	status := http.StatusOK
	if result.SuccessfulCount == 0 && len(req.Events) > 0 {
		status = http.StatusBadRequest
	}

	writeJSON(w, status, batchResponse{
		Results:         outcomes,
		SuccessfulCount: result.SuccessfulCount,
		FailedCount:     result.FailedCount,
	})
}

type batchOutcome struct {
	Index     int          `json:"index"`
	Success   bool         `json:"success"`
	EventID   string       `json:"event_id,omitempty"`
	Duplicate *bool        `json:"duplicate,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
}

type batchResponse struct {
	Results         []batchOutcome `json:"results"`
	SuccessfulCount int            `json:"successful_count"`
	FailedCount     int            `json:"failed_count"`
}
