package schedules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratus-ops/stratus/internal/authz"
)

// PGRepository persists schedules in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const scheduleColumns = `id, owner_user_id, team_id, title, period_start, period_end, status,
	submitted_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	sched, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, fmt.Errorf("schedules: get: %w", err)
	}
	return sched, nil
}

func (r *PGRepository) List(ctx context.Context, filter authz.ListFilter) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
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
		return []Schedule{}, nil
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("schedules: list: %w", err)
	}
	defer rows.Close()

	out := make([]Schedule, 0)
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("schedules: list scan: %w", err)
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, s Schedule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedules (id, owner_user_id, team_id, title, period_start, period_end, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.OwnerUserID, s.TeamID, s.Title, s.PeriodStart, s.PeriodEnd, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("schedules: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, s Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET title = $2, period_start = $3, period_end = $4, status = $5,
			submitted_at = $6, approved_by = $7, approved_at = $8,
			rejected_by = $9, rejected_at = $10, rejection_reason = $11,
			updated_at = $12
		WHERE id = $1`,
		s.ID, s.Title, s.PeriodStart, s.PeriodEnd, s.Status,
		s.SubmittedAt, s.ApprovedBy, s.ApprovedAt,
		s.RejectedBy, s.RejectedAt, s.RejectionReason,
		s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("schedules: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("schedules: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var s Schedule
	err := row.Scan(
		&s.ID, &s.OwnerUserID, &s.TeamID, &s.Title, &s.PeriodStart, &s.PeriodEnd, &s.Status,
		&s.SubmittedAt, &s.ApprovedBy, &s.ApprovedAt, &s.RejectedBy, &s.RejectedAt, &s.RejectionReason,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
