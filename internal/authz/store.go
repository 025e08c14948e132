package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratus-ops/stratus/internal/audit"
	"github.com/stratus-ops/stratus/internal/platform/db"
)

// MatrixEntry is one matrix row joined with its catalog names, for the
// administration surface.
type MatrixEntry struct {
	RoleID       int64  `json:"role_id"`
	RoleName     string `json:"role_name"`
	ResourceID   int64  `json:"resource_id"`
	ResourceName string `json:"resource_name"`
	ActionID     int64  `json:"action_id"`
	ActionName   string `json:"action_name"`
	Granted      bool   `json:"granted"`
	Scope        Scope  `json:"scope"`
}

// TxStore is the write path into the matrix, valid only inside a Store
// transaction. A permission upsert and its audit insert share the same
// transaction: neither commits without the other.
type TxStore interface {
	GetPermissionForUpdate(ctx context.Context, key Key) (*Permission, error)
	UpsertPermission(ctx context.Context, p Permission) error
	InsertAuditEntry(ctx context.Context, e audit.Entry) error
}

// Store is the durable permission matrix.
type Store interface {
	MatrixReader
	ListMatrix(ctx context.Context) ([]MatrixEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const permissionColumns = `role_id, resource_id, action_id, granted, scope, updated_at`

// GetPermission returns the matrix row for the key, or nil when absent.
func (s *PGStore) GetPermission(ctx context.Context, key Key) (*Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions
WHERE role_id = $1 AND resource_id = $2 AND action_id = $3`
	return scanPermission(s.pool.QueryRow(ctx, query, key.RoleID, key.ResourceID, key.ActionID))
}

// ListMatrix returns every matrix row joined with catalog names.
func (s *PGStore) ListMatrix(ctx context.Context) ([]MatrixEntry, error) {
	const query = `SELECT p.role_id, r.name, p.resource_id, res.name, p.action_id, a.name, p.granted, p.scope
FROM permissions p
JOIN roles r ON r.id = p.role_id
JOIN resources res ON res.id = p.resource_id
JOIN actions a ON a.id = p.action_id
ORDER BY r.hierarchy_level DESC, res.name, a.name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("authz: list matrix: %w", err)
	}
	defer rows.Close()

	var entries []MatrixEntry
	for rows.Next() {
		var e MatrixEntry
		var scope string
		if err := rows.Scan(&e.RoleID, &e.RoleName, &e.ResourceID, &e.ResourceName, &e.ActionID, &e.ActionName, &e.Granted, &scope); err != nil {
			return nil, fmt.Errorf("authz: scan matrix row: %w", err)
		}
		e.Scope = Scope(scope)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WithTx runs fn inside a RepeatableRead transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx})
	})
}

type pgTxStore struct {
	tx pgx.Tx
}

// GetPermissionForUpdate reads the row under a row lock so concurrent
// batches targeting the same key serialize.
func (t *pgTxStore) GetPermissionForUpdate(ctx context.Context, key Key) (*Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions
WHERE role_id = $1 AND resource_id = $2 AND action_id = $3 FOR UPDATE`
	return scanPermission(t.tx.QueryRow(ctx, query, key.RoleID, key.ResourceID, key.ActionID))
}

// UpsertPermission writes the matrix row, keyed on the composite unique
// constraint.
func (t *pgTxStore) UpsertPermission(ctx context.Context, p Permission) error {
	const query = `INSERT INTO permissions (role_id, resource_id, action_id, granted, scope, updated_at)
VALUES ($1, $2, $3, $4, $5, clock_timestamp())
ON CONFLICT (role_id, resource_id, action_id)
DO UPDATE SET granted = EXCLUDED.granted, scope = EXCLUDED.scope, updated_at = EXCLUDED.updated_at`
	_, err := t.tx.Exec(ctx, query, p.RoleID, p.ResourceID, p.ActionID, p.Granted, string(p.Scope))
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23503" {
			return fmt.Errorf("%w: %s", ErrUnknownReference, pgErr.ConstraintName)
		}
		return fmt.Errorf("authz: upsert permission: %w", err)
	}
	return nil
}

// InsertAuditEntry appends the audit record for a committed change. The
// timestamp is taken at write time, not call time, so the log reflects
// commit order under concurrent batches.
func (t *pgTxStore) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	const query = `INSERT INTO permission_audit
(actor_user_id, role_id, resource_id, action_id, prev_granted, prev_scope, new_granted, new_scope, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, clock_timestamp())`
	_, err := t.tx.Exec(ctx, query,
		e.ActorUserID, e.RoleID, e.ResourceID, e.ActionID,
		e.PrevGranted, e.PrevScope, e.NewGranted, e.NewScope,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

func scanPermission(row pgx.Row) (*Permission, error) {
	var p Permission
	var scope string
	err := row.Scan(&p.RoleID, &p.ResourceID, &p.ActionID, &p.Granted, &scope, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Scope = Scope(scope)
	if !p.Scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	return &p, nil
}

var _ Store = (*PGStore)(nil)
