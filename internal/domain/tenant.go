package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the fundamental unit of data isolation. It is created and
// mutated only by an administrative registration flow outside the core;
// the core only ever reads it.
type Tenant struct {
	ID                 uuid.UUID
	Name               string
	Slug               string
	ContactEmail       string
	APICredentialHash  [32]byte // SHA-256 digest; the raw credential is never stored
	Active             bool
	MaxEventsPerMinute int
	MonthlyEventQuota  *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Role is a User's permission level within its tenant.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// User is a human identity bound to exactly one tenant, used by the
// out-of-core session/bearer-token auth path.
type User struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Email             string
	PasswordHash      string // bcrypt
	Role              Role
	Active            bool
	FailedLoginCount  int
	LockedUntil       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
