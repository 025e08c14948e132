package entries

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratus-ops/stratus/internal/authz"
)

// PGRepository persists entries in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const entryColumns = `id, owner_user_id, team_id, day, hours, note, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("entries: get: %w", err)
	}
	return entry, nil
}

func (r *PGRepository) List(ctx context.Context, filter authz.ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
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
		return []Entry{}, nil
	}
	query += ` ORDER BY day DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("entries: list: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("entries: list scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, e Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO entries (owner_user_id, team_id, day, hours, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.OwnerUserID, e.TeamID, e.Day, e.Hours, e.Note, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("entries: create: %w", err)
	}
	return e, nil
}

func (r *PGRepository) Update(ctx context.Context, e Entry) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE entries SET day = $2, hours = $3, note = $4, updated_at = $5 WHERE id = $1`,
		e.ID, e.Day, e.Hours, e.Note, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("entries: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("entries: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.OwnerUserID, &e.TeamID, &e.Day, &e.Hours, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
