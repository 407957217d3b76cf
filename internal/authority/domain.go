// Package authority issues signed access tokens for verified principals,
// validates presented tokens and answers role-based authorization questions.
//
// An Authority is built once at startup from an explicit Config and is
// read-only afterwards; all methods are safe for concurrent use.
package authority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names a category of principal. The set of roles is closed.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleUser}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole normalises name and returns the matching Role.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(name)))
	if !role.Valid() {
		return "", fmt.Errorf("authority: unknown role %q", name)
	}
	return role, nil
}

// Principal is an account as seen by the authority at authentication time.
type Principal struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	CredentialHash string
	Active         bool
}

// AuthenticatedPrincipal is the identity recovered from a validated token.
type AuthenticatedPrincipal struct {
	ID        string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is the bearer credential handed to clients.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// Claims is the JWT payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// PrincipalFinder looks principals up in the external account store.
// Both methods return ErrPrincipalNotFound when nothing matches.
type PrincipalFinder interface {
	FindPrincipal(ctx context.Context, identifier string) (Principal, error)
	FindPrincipalByID(ctx context.Context, id string) (Principal, error)
}
