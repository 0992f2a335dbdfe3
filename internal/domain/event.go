package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed enumeration of ingestible event types.
type EventKind string

const (
	EventKindAPICall    EventKind = "api_call"
	EventKindError      EventKind = "error"
	EventKindUserAction EventKind = "user_action"
	EventKindCustom     EventKind = "custom_event"
	EventKindSystem     EventKind = "system"
)

var validEventKinds = map[EventKind]bool{
	EventKindAPICall:    true,
	EventKindError:      true,
	EventKindUserAction: true,
	EventKindCustom:     true,
	EventKindSystem:     true,
}

// ValidEventKind reports whether k belongs to the closed enumeration.
func ValidEventKind(k EventKind) bool { return validEventKinds[k] }

// Severity is the closed enumeration of event severities.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var validSeverities = map[Severity]bool{
	SeverityDebug:    true,
	SeverityInfo:     true,
	SeverityWarning:  true,
	SeverityError:    true,
	SeverityCritical: true,
}

// ValidSeverity reports whether s belongs to the closed enumeration.
func ValidSeverity(s Severity) bool { return validSeverities[s] }

// ProcessingState is the event's position in the post-ingest state
// machine. Only the write path may set it to Queued; every other
// transition belongs to the out-of-core worker and sweeper.
type ProcessingState string

const (
	StateQueued     ProcessingState = "queued"
	StateProcessing ProcessingState = "processing"
	StateProcessed  ProcessingState = "processed"
	StateFailed     ProcessingState = "failed"
)

// Source describes where an event originated.
type Source struct {
	Service     string `json:"service"`
	Endpoint    string `json:"endpoint,omitempty"`
	Method      string `json:"method,omitempty"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// EventContext carries request-scoped metadata supplied by the client.
type EventContext struct {
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Metrics carries optional numeric measurements for api_call-shaped events.
type Metrics struct {
	ResponseTimeMs    *float64 `json:"response_time_ms,omitempty"`
	StatusCode        *int     `json:"status_code,omitempty"`
	RequestSizeBytes  *int64   `json:"request_size_bytes,omitempty"`
	ResponseSizeBytes *int64   `json:"response_size_bytes,omitempty"`
	CacheHit          *bool    `json:"cache_hit,omitempty"`
}

// Event is the immutable observability record persisted by the ingestion
// coordinator. It is never updated by the write path after creation,
// except for ProcessingState, which is owned by the out-of-core worker.
type Event struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ExternalID  *string // client-supplied; unique per tenant among non-deleted rows when present
	Kind        EventKind
	Severity    Severity
	Title       string
	Message     string
	OccurredAt  time.Time // UTC, from the client or defaulted to ReceivedAt
	ReceivedAt  time.Time // UTC, server clock
	Source      Source
	Payload     map[string]any
	Context     EventContext
	Metrics     Metrics
	State       ProcessingState
	Deleted     bool
}
