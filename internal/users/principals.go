package users

import (
	"context"
	"errors"
	"strconv"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
)

// AccountReader is the read side of RepositoryPort.
type AccountReader interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
}

// PrincipalStore exposes accounts to the authority.
type PrincipalStore struct {
	accounts AccountReader
}

// NewPrincipalStore wraps accounts.
func NewPrincipalStore(accounts AccountReader) *PrincipalStore {
	return &PrincipalStore{accounts: accounts}
}

// FindPrincipal looks identifier up as an email address.
func (s *PrincipalStore) FindPrincipal(ctx context.Context, identifier string) (authority.Principal, error) {
	email := NormalizeEmail(identifier)
	if email == "" {
		return authority.Principal{}, authority.ErrPrincipalNotFound
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	return toPrincipal(account, err)
}

// FindPrincipalByID looks the principal up by its decimal id.
func (s *PrincipalStore) FindPrincipalByID(ctx context.Context, id string) (authority.Principal, error) {
	n, err := parseID(id)
	if err != nil {
		return authority.Principal{}, authority.ErrPrincipalNotFound
	}
	account, err := s.accounts.FindByID(ctx, n)
	return toPrincipal(account, err)
}

func toPrincipal(account Account, err error) (authority.Principal, error) {
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authority.Principal{}, authority.ErrPrincipalNotFound
		}
		return authority.Principal{}, err
	}
	return authority.Principal{
		ID:             strconv.FormatInt(account.ID, 10),
		Email:          account.Email,
		FullName:       account.FullName,
		Role:           account.Role,
		CredentialHash: account.PasswordHash,
		Active:         account.IsActive,
	}, nil
}

var _ authority.PrincipalFinder = (*PrincipalStore)(nil)
