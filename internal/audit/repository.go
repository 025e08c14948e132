package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the permission_audit table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectRows = `SELECT pa.id, pa.actor_user_id, pa.role_id, pa.resource_id, pa.action_id,
pa.prev_granted, pa.prev_scope, pa.new_granted, pa.new_scope, pa.at,
u.email, r.name, res.name, a.name
FROM permission_audit pa
JOIN users u ON u.id = pa.actor_user_id
JOIN roles r ON r.id = pa.role_id
JOIN resources res ON res.id = pa.resource_id
JOIN actions a ON a.id = pa.action_id`

// Query returns a window of audit rows, newest first.
func (r *PGRepository) Query(ctx context.Context, filters Filters, limit, offset int) ([]Row, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf("%s%s ORDER BY pa.at DESC, pa.id DESC LIMIT $%d OFFSET $%d",
		selectRows, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.queryRows(ctx, query, args)
}

// QueryAll returns every matching audit row, newest first.
func (r *PGRepository) QueryAll(ctx context.Context, filters Filters) ([]Row, error) {
	where, args := buildWhere(filters)
	query := selectRows + where + " ORDER BY pa.at DESC, pa.id DESC"
	return r.queryRows(ctx, query, args)
}

func (r *PGRepository) queryRows(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func buildWhere(filters Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filters.RoleID > 0 {
		add("pa.role_id = $%d", filters.RoleID)
	}
	if filters.ResourceID > 0 {
		add("pa.resource_id = $%d", filters.ResourceID)
	}
	if filters.ActorUserID > 0 {
		add("pa.actor_user_id = $%d", filters.ActorUserID)
	}
	if !filters.From.IsZero() {
		add("pa.at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("pa.at < $%d", filters.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanRow(rows pgx.Rows) (Row, error) {
	var row Row
	err := rows.Scan(
		&row.ID, &row.ActorUserID, &row.RoleID, &row.ResourceID, &row.ActionID,
		&row.PrevGranted, &row.PrevScope, &row.NewGranted, &row.NewScope, &row.At,
		&row.ActorEmail, &row.RoleName, &row.ResourceName, &row.ActionName,
	)
	if err != nil {
		return Row{}, fmt.Errorf("audit: scan row: %w", err)
	}
	return row, nil
}

var _ Repository = (*PGRepository)(nil)
