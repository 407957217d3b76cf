package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, in NewUser) (User, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// PasswordHasher hashes and verifies credentials. *authority.Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// Authorizer checks capabilities. *authority.Authority satisfies it.
type Authorizer interface {
	Require(p authority.AuthenticatedPrincipal, c authority.Capability) error
}

// Service handles account business logic.
type Service struct {
	repo     RepositoryPort
	hasher   PasswordHasher
	authz    Authorizer
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher PasswordHasher, authz Authorizer) *Service {
	return &Service{repo: repo, hasher: hasher, authz: authz, validate: newValidator()}
}

// NormalizeEmail trims and case folds an email so that lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Register creates a self-service account. The role is always user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return User{}, validationError(err)
	}
	return s.create(ctx, in.Email, in.FullName, in.Password, authority.RoleUser)
}

// CreateByAdmin creates an account with any known role on behalf of actor.
func (s *Service) CreateByAdmin(ctx context.Context, actor authority.AuthenticatedPrincipal, in CreateInput) (User, error) {
	if s.authz != nil {
		if err := s.authz.Require(actor, authority.CapCreateUser); err != nil {
			return User{}, err
		}
	}
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return User{}, validationError(err)
	}
	role, err := authority.ParseRole(in.Role)
	if err != nil {
		return User{}, shared.NewValidationError("role", "must be one of: admin, user")
	}
	return s.create(ctx, in.Email, in.FullName, in.Password, role)
}

// ChangePassword replaces the password of principalID after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, principalID string, in ChangePasswordInput) error {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return validationError(err)
	}
	id, err := parseID(principalID)
	if err != nil {
		return err
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("users: change password: %w", err)
	}
	if !s.hasher.Verify(in.CurrentPassword, account.PasswordHash) {
		return shared.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("users: change password: %w", err)
	}
	return nil
}

// Get returns the user with the given principal id.
func (s *Service) Get(ctx context.Context, principalID string) (User, error) {
	id, err := parseID(principalID)
	if err != nil {
		return User{}, err
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get: %w", err)
	}
	return account.User, nil
}

// MaxPerPage caps the page size of List.
const MaxPerPage = 100

// List returns one page of users ordered by id.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("users: count: %w", err)
	}
	p := shared.NewPagination(page, perPage, total)
	users, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("users: list: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, p, nil
}

// EnsureInitialAdmin creates the first administrator unless an account with
// email already exists. It reports whether an account was created.
func (s *Service) EnsureInitialAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return false, errors.New("users: initial admin email and password required")
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return false, fmt.Errorf("users: lookup initial admin: %w", err)
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	in := CreateInput{Email: email, FullName: strings.TrimSpace(fullName), Password: password, Role: string(authority.RoleAdmin)}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return false, fmt.Errorf("users: initial admin: %w", validationError(err))
	}
	if _, err := s.create(ctx, in.Email, in.FullName, in.Password, authority.RoleAdmin); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) create(ctx context.Context, email, fullName, password string, role authority.Role) (User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{Email: email, FullName: fullName, PasswordHash: hash, Role: role})
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("users: invalid id %q: %w", raw, shared.ErrNotFound)
	}
	return id, nil
}
