// Package auth defines the token introspection capability the API depends on.
// Authentication itself is owned by the auth collaborator; this service only
// needs "verify(token) → identity" semantics and stays transport-agnostic
// about how the check happens.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalidToken is returned when the token is missing, expired, or rejected
// by the introspection endpoint. An unreachable introspector maps here too:
// requests are never let through on a failed check.
var ErrInvalidToken = errors.New("invalid or expired token")

// RoleAdmin marks callers allowed to run privileged status transitions.
const RoleAdmin = "admin"

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// TokenIntrospector verifies bearer tokens against the auth collaborator.
type TokenIntrospector interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
