package validate

// Request is the canonical event submission schema (spec §6). It is the
// "parsed but unchecked request object" the validator normalizes.
type Request struct {
	EventType string            `json:"event_type"`
	EventID   *string           `json:"event_id,omitempty"`
	Timestamp *string           `json:"timestamp,omitempty"`
	Title     string            `json:"title"`
	Message   string            `json:"message,omitempty"`
	Severity  string            `json:"severity"`
	Source    SourceRequest     `json:"source"`
	Context   *ContextRequest   `json:"context,omitempty"`
	Metrics   *MetricsRequest   `json:"metrics,omitempty"`
	Payload   map[string]any    `json:"payload,omitempty"`
}

type SourceRequest struct {
	Service     string `json:"service"`
	Endpoint    string `json:"endpoint,omitempty"`
	Method      string `json:"method,omitempty"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

type ContextRequest struct {
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

type MetricsRequest struct {
	ResponseTimeMs    *float64 `json:"response_time_ms,omitempty"`
	StatusCode        *int     `json:"status_code,omitempty"`
	RequestSizeBytes  *int64   `json:"request_size_bytes,omitempty"`
	ResponseSizeBytes *int64   `json:"response_size_bytes,omitempty"`
	CacheHit          *bool    `json:"cache_hit,omitempty"`
}

// BatchRequest is the envelope for POST /ingestion/events/batch.
type BatchRequest struct {
	Events []Request `json:"events"`
}
