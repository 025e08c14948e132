package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stratus-ops/stratus/internal/authz"
)

// CatalogWarmupJob refreshes the role/resource/action catalog cache so the
// first request after a deploy does not pay the load.
type CatalogWarmupJob struct {
	catalog *authz.CachedCatalog
	logger  *slog.Logger
}

// NewCatalogWarmupJob constructs a CatalogWarmupJob.
func NewCatalogWarmupJob(catalog *authz.CachedCatalog, logger *slog.Logger) *CatalogWarmupJob {
	return &CatalogWarmupJob{catalog: catalog, logger: logger}
}

// Handle processes TaskCatalogWarmup tasks.
func (j *CatalogWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.catalog.Refresh(ctx); err != nil {
		return err
	}
	j.logger.Info("catalog cache warmed")
	return nil
}
