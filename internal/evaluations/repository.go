package evaluations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratus-ops/stratus/internal/authz"
)

// PGRepository persists evaluations in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const evalColumns = `id, owner_user_id, team_id, reviewer_user_id, period, rating, summary, created_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (Evaluation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+evalColumns+` FROM evaluations WHERE id = $1`, id)
	eval, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, fmt.Errorf("evaluations: get: %w", err)
	}
	return eval, nil
}

func (r *PGRepository) List(ctx context.Context, filter authz.ListFilter) ([]Evaluation, error) {
	query := `SELECT ` + evalColumns + ` FROM evaluations`
	var args []any
	switch filter.Kind {
	case authz.FilterUnrestricted:
	case authz.FilterOwnerEquals:
		query += ` WHERE owner_user_id = $1`
		args = append(args, filter.OwnerID)
	case authz.FilterTeamEquals:
		query += ` WHERE team_id = $1`
		args = append(args, filter.TeamID)
	default:
		return []Evaluation{}, nil
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("evaluations: list: %w", err)
	}
	defer rows.Close()

	out := make([]Evaluation, 0)
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("evaluations: list scan: %w", err)
		}
		out = append(out, eval)
	}
	return out, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, e Evaluation) (Evaluation, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO evaluations (owner_user_id, team_id, reviewer_user_id, period, rating, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.OwnerUserID, e.TeamID, e.ReviewerUserID, e.Period, e.Rating, e.Summary, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluations: create: %w", err)
	}
	return e, nil
}

func scanEvaluation(row pgx.Row) (Evaluation, error) {
	var e Evaluation
	err := row.Scan(&e.ID, &e.OwnerUserID, &e.TeamID, &e.ReviewerUserID, &e.Period, &e.Rating, &e.Summary, &e.CreatedAt)
	return e, err
}
