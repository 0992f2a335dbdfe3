// Package apierrors defines the closed error taxonomy shared by every
// core component. Each component raises one of these Kinds; only the
// HTTP surface is permitted to map a Kind to a status code (spec §7).
package apierrors

import "fmt"

// Kind is the closed set of error categories the core can raise.
type Kind string

const (
	KindUnauthorized     Kind = "unauthorized"
	KindInvalidEvent     Kind = "invalid_event"
	KindRateLimited      Kind = "rate_limited"
	KindNotFound         Kind = "not_found"
	KindStoreUnavailable Kind = "store_unavailable"
	KindCacheUnavailable Kind = "cache_unavailable"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// FieldError describes one failed validation rule on one field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the typed error every layer above the store deals in.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError // populated only for KindInvalidEvent
	// RetryAfterSeconds is populated only for KindRateLimited.
	RetryAfterSeconds int
	cause             error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind that chains cause via errors.Unwrap.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation builds a KindInvalidEvent error carrying the full field list.
func Validation(fields []FieldError) *Error {
	return &Error{Kind: KindInvalidEvent, Message: "event failed validation", Fields: fields}
}

// RateLimited builds a KindRateLimited error carrying retry-after metadata.
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Kind:              KindRateLimited,
		Message:           "rate limit exceeded",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// As is a narrow local helper so this package does not need to import
// the standard errors package's generic As in every caller.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
