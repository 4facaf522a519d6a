package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/auth"
)

const (
	getUserByIDSQL = `SELECT id, name, email, is_admin FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, name, email, is_admin)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, is_admin = EXCLUDED.is_admin
	RETURNING id`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository implements auth.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByID returns the user with the given ID or auth.ErrUserNotFound.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, getUserByIDSQL, id).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// Upsert inserts the user or updates the existing user with the same email.
// It returns the stored user ID, which differs from u.ID when the email was
// already registered.
func (r *UserRepository) Upsert(ctx context.Context, u auth.User) (string, error) {
	var id string
	if err := r.pool.QueryRow(ctx, upsertUserSQL, u.ID, u.Name, u.Email, u.IsAdmin).Scan(&id); err != nil {
		return "", fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return id, nil
}
