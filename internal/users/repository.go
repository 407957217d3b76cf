package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/platform/db"
	"github.com/student-sections/sections-api/internal/shared"
)

// DB is the subset of *pgxpool.Pool used by Repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db DB
}

// NewRepository constructs a repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const selectAccount = `SELECT u.id, u.email, u.full_name, r.name, u.is_active, u.created_at, u.updated_at, u.hashed_password
FROM users u
JOIN roles r ON r.id = u.role_id`

// Create inserts a user with the role of the given name.
func (r *Repository) Create(ctx context.Context, in NewUser) (User, error) {
	var user User
	var role string
	err := r.db.QueryRow(ctx, `INSERT INTO users (email, full_name, hashed_password, role_id)
SELECT $1, $2, $3, r.id FROM roles r WHERE r.name = $4
RETURNING id, email, full_name, $4::text, is_active, created_at, updated_at`,
		in.Email, in.FullName, in.PasswordHash, string(in.Role),
	).Scan(&user.ID, &user.Email, &user.FullName, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("users: role %q not provisioned: %w", in.Role, shared.ErrNotFound)
		}
		if db.IsUniqueViolation(err) {
			return User{}, fmt.Errorf("users: email already registered: %w", shared.ErrDuplicate)
		}
		return User{}, err
	}
	user.Role = authority.Role(role)
	return user, nil
}

// FindByEmail loads the account with the given normalised email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE u.email = $1`, email))
}

// FindByID loads the account with the given id.
func (r *Repository) FindByID(ctx context.Context, id int64) (Account, error) {
	return r.scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE u.id = $1`, id))
}

// List returns one page of users ordered by id.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.db.Query(ctx, selectAccount+` ORDER BY u.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, account.User)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// UpdatePassword replaces the stored hash of user id.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) scanAccount(row pgx.Row) (Account, error) {
	var account Account
	var role string
	err := row.Scan(&account.ID, &account.Email, &account.FullName, &role, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt, &account.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	account.Role = authority.Role(role)
	return account, nil
}
