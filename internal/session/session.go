// Package session issues and validates the HS256 bearer tokens used by
// the human-facing session login (spec.md's out-of-core user session
// auth), as distinct from the per-tenant X-API-Key credential used by
// the ingestion and query surface. Trimmed from a JWKS/RS256-capable
// multi-issuer validator down to a single shared secret, since there is
// no upstream identity provider in this system.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Claims identifies the signed-in user and the tenant they belong to.
type Claims struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     string
}

// Issuer signs and validates session tokens with a single HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer. ttl bounds how long an issued token stays
// valid.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret must not be empty")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue mints a signed token for the given claims.
func (i *Issuer) Issue(claims Claims) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       claims.UserID.String(),
		"tenant_id": claims.TenantID.String(),
		"role":      claims.Role,
		"iat":       now.Unix(),
		"exp":       now.Add(i.ttl).Unix(),
	})
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token, returning its claims.
func (i *Issuer) Validate(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, errors.New("session: token is empty")
	}

	mapClaims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, mapClaims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("session: token validation failed: %w", err)
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, errors.New("session: missing or invalid sub claim")
	}
	tenantStr, _ := mapClaims["tenant_id"].(string)
	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return Claims{}, errors.New("session: missing or invalid tenant_id claim")
	}
	role, _ := mapClaims["role"].(string)

	return Claims{UserID: userID, TenantID: tenantID, Role: role}, nil
}

type ctxKey string

const claimsCtxKey ctxKey = "session_claims"

// WithClaims attaches Claims to ctx for downstream handlers.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// FromContext retrieves the Claims attached by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsCtxKey).(Claims)
	return claims, ok
}

// HashPassword bcrypt-hashes a plaintext password for domain.User.PasswordHash.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("session: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches a domain.User.PasswordHash
// previously produced by HashPassword.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
