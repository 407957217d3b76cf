package authority

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the authority. All of them are scoped to a
// single request.
var (
	ErrInvalidCredentials  = errors.New("authority: invalid credentials")
	ErrMalformedToken      = errors.New("authority: malformed token")
	ErrTokenExpired        = errors.New("authority: token expired")
	ErrTokenRevoked        = errors.New("authority: token revoked")
	ErrAuthorizationDenied = errors.New("authority: authorization denied")

	ErrPrincipalNotFound     = errors.New("authority: principal not found")
	ErrRevocationUnavailable = errors.New("authority: revocation list not configured")
	ErrWeakSigningKey        = errors.New("authority: signing key too weak")
)

// DeniedError describes a failed capability check.
type DeniedError struct {
	Subject    string
	Role       Role
	Capability Capability
}

// Error returns the error message.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("authority: authorization denied: subject=%q role=%q capability=%q",
		e.Subject, e.Role, e.Capability)
}

// Is lets errors.Is match ErrAuthorizationDenied.
func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}
