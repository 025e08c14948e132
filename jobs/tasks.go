// Package jobs hosts the background worker and its scheduled tasks.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditIntegrityCheck verifies that matrix rows have audit coverage.
	TaskAuditIntegrityCheck = "audit:integrity_check"
	// TaskCatalogWarmup refreshes the role/resource/action catalog cache.
	TaskCatalogWarmup = "catalog:warmup"
)

// AuditIntegrityPayload bounds how far back the integrity scan looks.
type AuditIntegrityPayload struct {
	WindowHours int `json:"window_hours"`
}

// NewAuditIntegrityTask constructs an audit integrity scan task.
func NewAuditIntegrityTask(windowHours int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditIntegrityPayload{WindowHours: windowHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditIntegrityCheck, data), nil
}

// NewCatalogWarmupTask constructs a catalog warmup task.
func NewCatalogWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskCatalogWarmup, nil), nil
}
