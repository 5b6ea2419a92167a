// Package auth is the boundary to the excluded authentication collaborator:
// the core consumes only an already-verified caller identity from it.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnknownIdentity is returned when no identity matches the lookup.
var ErrUnknownIdentity = errors.New("unknown identity")

// Role controls how far a caller's list queries reach: plain users are scoped
// to their own records, managers and admins see everything.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Privileged reports whether the role bypasses own-records scoping.
func (r Role) Privileged() bool {
	return r == RoleManager || r == RoleAdmin
}

// Identity is a verified caller.
type Identity struct {
	ID      string
	Name    string
	Email   string
	Role    Role
	KeyHash string
}

// Directory resolves identities by API key hash (request authentication) and
// by email (payment-webhook buyer resolution).
type Directory interface {
	FindByKeyHash(ctx context.Context, hash string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
}
