package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditIntegrityJob scans for permission rows changed recently without a
// matching audit entry. Such rows mean something wrote to the matrix outside
// the mutator path.
type AuditIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditIntegrityJob constructs an AuditIntegrityJob.
func NewAuditIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditIntegrityJob {
	return &AuditIntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskAuditIntegrityCheck tasks.
func (j *AuditIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	payload := AuditIntegrityPayload{WindowHours: 24}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}

	const query = `
		SELECT p.role_id, p.resource_id, p.action_id, p.updated_at
		FROM permissions p
		WHERE p.updated_at > now() - ($1 * interval '1 hour')
		  AND NOT EXISTS (
			SELECT 1 FROM permission_audit a
			WHERE a.role_id = p.role_id
			  AND a.resource_id = p.resource_id
			  AND a.action_id = p.action_id
			  AND a.at >= p.updated_at - interval '1 second'
		  )`

	rows, err := j.pool.Query(ctx, query, payload.WindowHours)
	if err != nil {
		return err
	}
	defer rows.Close()

	var orphans int
	for rows.Next() {
		var roleID, resourceID, actionID int64
		var updatedAt time.Time
		if err := rows.Scan(&roleID, &resourceID, &actionID, &updatedAt); err != nil {
			return err
		}
		orphans++
		j.logger.Warn("permission row without audit entry",
			slog.Int64("role_id", roleID),
			slog.Int64("resource_id", resourceID),
			slog.Int64("action_id", actionID),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	j.logger.Info("audit integrity check finished",
		slog.Int("window_hours", payload.WindowHours),
		slog.Int("orphans", orphans),
	)
	return nil
}
