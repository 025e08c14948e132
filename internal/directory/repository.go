package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratus-ops/stratus/internal/shared"
)

// Repository defines directory lookups consumed by the authorization core.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetUser fetches a user's role and team assignment by ID.
func (r *PGRepository) GetUser(ctx context.Context, userID int64) (User, error) {
	const query = `SELECT id, email, role_id, team_id, is_active, created_at, updated_at
FROM users WHERE id = $1`
	var u User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.RoleID, &u.TeamID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("directory: get user: %w", err)
	}
	return u, nil
}

// FindByEmail fetches a user plus stored password hash for login.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, string, error) {
	const query = `SELECT id, email, role_id, team_id, is_active, password_hash, created_at, updated_at
FROM users WHERE lower(email) = lower($1)`
	var (
		u    User
		hash string
	)
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.RoleID, &u.TeamID, &u.IsActive, &hash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", shared.ErrNotFound
		}
		return User{}, "", fmt.Errorf("directory: find by email: %w", err)
	}
	return u, hash, nil
}

var _ Repository = (*PGRepository)(nil)
