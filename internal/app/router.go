package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/stratus-ops/stratus/internal/audit/http"
	"github.com/stratus-ops/stratus/internal/auth"
	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/entries"
	"github.com/stratus-ops/stratus/internal/evaluations"
	"github.com/stratus-ops/stratus/internal/schedules"
	"github.com/stratus-ops/stratus/internal/shared"
	"github.com/stratus-ops/stratus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler        *auth.Handler
	EntriesHandler     *entries.Handler
	EvaluationsHandler *evaluations.Handler
	SchedulesHandler   *schedules.Handler
	PermissionsHandler *authz.Handler
	AuditHandler       *audithttp.Handler
	JobsHandler        *jobs.Handler

	AuthzMiddleware authz.Middleware
}

// NewRouter constructs the chi.Router with Stratus defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		if params.EntriesHandler != nil {
			r.Route("/entries", params.EntriesHandler.MountRoutes)
		}
		if params.EvaluationsHandler != nil {
			r.Route("/evaluations", params.EvaluationsHandler.MountRoutes)
		}
		if params.SchedulesHandler != nil {
			r.Route("/schedules", params.SchedulesHandler.MountRoutes)
		}

		r.Route("/admin", func(r chi.Router) {
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				// The audit trail shares the settings/read gate with the
				// matrix view.
				r.Route("/audit", func(r chi.Router) {
					r.Use(params.AuthzMiddleware.Require(authz.ResourceSettings, authz.ActionRead))
					params.AuditHandler.MountRoutes(r)
				})
			}
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	return r
}
