package roles

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/student-sections/sections-api/internal/platform/db"
)

// DB is the subset of *pgxpool.Pool used by Repository.
type DB interface {
	db.TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db DB
}

// NewRepository constructs a repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// EnsureRoles inserts missing seeds in one transaction and returns how many
// rows were created.
func (r *Repository) EnsureRoles(ctx context.Context, seeds []Seed) (int, error) {
	created := 0
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, seed := range seeds {
			tag, err := tx.Exec(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
				string(seed.Name), seed.Description)
			if err != nil {
				return err
			}
			created += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
