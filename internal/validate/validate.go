// Package validate implements the staged validator described in spec
// §4.4: a single pass that collects every failing field rather than
// short-circuiting on the first, returning a structured multi-error
// value instead of tunneling validation failures through exceptions
// (spec §9 "Dynamic validation decorators").
package validate

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pulsestream/pulsestream/internal/apierrors"
	"github.com/pulsestream/pulsestream/internal/domain"
)

const (
	maxTitleLen    = 512
	maxMessageLen  = 64 * 1024
	maxServiceLen  = 255
	maxEndpointLen = 1024
	maxEventIDLen  = 128
)

// Config carries the tenant-independent, deployment-wide validation
// tunables from spec §6 ("Environment").
type Config struct {
	ClockSkewTolerance time.Duration
	RetentionHorizon   time.Duration
	MaxPayloadSize     int64
}

// collector accumulates field errors across the whole pass; it never
// short-circuits across fields (spec §4.4 "Errors").
type collector struct {
	fields []apierrors.FieldError
}

func (c *collector) add(path, message string) {
	c.fields = append(c.fields, apierrors.FieldError{Path: path, Message: message})
}

// Validate normalizes req into a domain.Event (minus server-assigned
// fields) or returns every failing field in one *apierrors.Error.
func Validate(req Request, cfg Config, now time.Time) (domain.Event, *apierrors.Error) {
	c := &collector{}
	ev := domain.Event{}

	// Required fields present.
	if strings.TrimSpace(req.EventType) == "" {
		c.add("event_type", "event_type is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		c.add("title", "title is required")
	}
	if strings.TrimSpace(req.Source.Service) == "" {
		c.add("source.service", "source.service is required")
	}

	// String lengths.
	if utf8.RuneCountInString(req.Title) > maxTitleLen {
		c.add("title", "title exceeds maximum length of 512 characters")
	}
	if len(req.Message) > maxMessageLen {
		c.add("message", "message exceeds maximum length of 65536 bytes")
	}
	if utf8.RuneCountInString(req.Source.Service) > maxServiceLen {
		c.add("source.service", "source.service exceeds maximum length of 255 characters")
	}
	if utf8.RuneCountInString(req.Source.Endpoint) > maxEndpointLen {
		c.add("source.endpoint", "source.endpoint exceeds maximum length of 1024 characters")
	}
	if req.EventID != nil && utf8.RuneCountInString(*req.EventID) > maxEventIDLen {
		c.add("event_id", "event_id exceeds maximum length of 128 characters")
	}

	// Enumerations.
	kind := domain.EventKind(req.EventType)
	if req.EventType != "" && !domain.ValidEventKind(kind) {
		c.add("event_type", "event_type is not a recognized event kind")
	}
	severity := domain.Severity(req.Severity)
	if req.Severity == "" {
		c.add("severity", "severity is required")
	} else if !domain.ValidSeverity(severity) {
		c.add("severity", "severity is not a recognized severity level")
	}

	// Occurrence timestamp.
	occurredAt := now.UTC()
	if req.Timestamp != nil && *req.Timestamp != "" {
		parsed, err := parseTimestamp(*req.Timestamp)
		if err != nil {
			c.add("timestamp", "timestamp is not a parseable ISO-8601 instant")
		} else {
			occurredAt = parsed
			if occurredAt.After(now.Add(cfg.ClockSkewTolerance)) {
				c.add("timestamp", "timestamp is too far in the future")
			}
			if occurredAt.Before(now.Add(-cfg.RetentionHorizon)) {
				c.add("timestamp", "timestamp is older than the retention horizon")
			}
		}
	}

	// Payload size.
	var payloadBytes int
	if req.Payload != nil {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			c.add("payload", "payload is not serializable")
		} else {
			payloadBytes = len(b)
			if int64(payloadBytes) > cfg.MaxPayloadSize {
				c.add("payload", "payload exceeds maximum serialized size")
			}
		}
	}

	// Metrics.
	var metrics domain.Metrics
	if req.Metrics != nil {
		metrics = validateMetrics(req.Metrics, c)
	}

	if len(c.fields) > 0 {
		return domain.Event{}, apierrors.Validation(c.fields)
	}

	ev.Kind = kind
	ev.Severity = severity
	ev.Title = req.Title
	ev.Message = req.Message
	ev.OccurredAt = occurredAt
	ev.Source = domain.Source{
		Service:     req.Source.Service,
		Endpoint:    req.Source.Endpoint,
		Method:      req.Source.Method,
		Version:     req.Source.Version,
		Environment: req.Source.Environment,
	}
	ev.Payload = req.Payload
	if req.Context != nil {
		ev.Context = domain.EventContext{
			UserID:    req.Context.UserID,
			SessionID: req.Context.SessionID,
			RequestID: req.Context.RequestID,
			IPAddress: req.Context.IPAddress,
			UserAgent: req.Context.UserAgent,
			Tags:      req.Context.Tags,
		}
	}
	ev.Metrics = metrics
	if req.EventID != nil && *req.EventID != "" {
		id := *req.EventID
		ev.ExternalID = &id
	}

	return ev, nil
}

func validateMetrics(m *MetricsRequest, c *collector) domain.Metrics {
	out := domain.Metrics{}
	if m.ResponseTimeMs != nil {
		if !finiteNonNegative(*m.ResponseTimeMs) {
			c.add("metrics.response_time_ms", "response_time_ms must be a finite, non-negative number")
		} else {
			out.ResponseTimeMs = m.ResponseTimeMs
		}
	}
	if m.StatusCode != nil {
		if *m.StatusCode < 100 || *m.StatusCode > 599 {
			c.add("metrics.status_code", "status_code must be between 100 and 599")
		} else {
			out.StatusCode = m.StatusCode
		}
	}
	if m.RequestSizeBytes != nil {
		if *m.RequestSizeBytes < 0 {
			c.add("metrics.request_size_bytes", "request_size_bytes must be non-negative")
		} else {
			out.RequestSizeBytes = m.RequestSizeBytes
		}
	}
	if m.ResponseSizeBytes != nil {
		if *m.ResponseSizeBytes < 0 {
			c.add("metrics.response_size_bytes", "response_size_bytes must be non-negative")
		} else {
			out.ResponseSizeBytes = m.ResponseSizeBytes
		}
	}
	out.CacheHit = m.CacheHit
	return out
}

func finiteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// parseTimestamp parses an ISO-8601 instant; naive (no offset/zone)
// timestamps are interpreted as UTC per spec §4.4.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	const naive = "2006-01-02T15:04:05"
	if t, err := time.Parse(naive, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
