package domain

import (
	"strings"
	"time"
)

// Role is the access level granted to an identity.
type Role string

const (
	RoleReadUser  Role = "ReadUser"
	RoleWriteUser Role = "WriteUser"
	RoleAdmin     Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleReadUser, RoleWriteUser, RoleAdmin:
		return true
	}
	return false
}

// KindIdentity names identities in cache keys.
const KindIdentity = "identity"

// Identity is an immutable snapshot of a registered user. Mutations return a
// new value instead of changing the receiver.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentity builds a snapshot for a freshly registered user.
func NewIdentity(id, email, passwordHash string, role Role) Identity {
	if role == "" {
		role = RoleReadUser
	}
	return Identity{
		ID:           id,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
	}
}

// WithPasswordHash returns a copy carrying the new hash.
func (i Identity) WithPasswordHash(hash string) Identity {
	i.PasswordHash = hash
	return i
}

// WithRole returns a copy carrying the new role.
func (i Identity) WithRole(role Role) Identity {
	i.Role = role
	return i
}

// NormalizeEmail folds an email for case-insensitive comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
