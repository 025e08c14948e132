package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stratus-ops/stratus/internal/app"
	"github.com/stratus-ops/stratus/internal/audit"
	audithttp "github.com/stratus-ops/stratus/internal/audit/http"
	"github.com/stratus-ops/stratus/internal/auth"
	"github.com/stratus-ops/stratus/internal/authz"
	"github.com/stratus-ops/stratus/internal/directory"
	"github.com/stratus-ops/stratus/internal/entries"
	"github.com/stratus-ops/stratus/internal/evaluations"
	"github.com/stratus-ops/stratus/internal/platform/cache"
	"github.com/stratus-ops/stratus/internal/platform/db"
	"github.com/stratus-ops/stratus/internal/schedules"
	"github.com/stratus-ops/stratus/internal/shared"
	"github.com/stratus-ops/stratus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "stratus_session", cfg.SessionTTL, cfg.IsProduction())

	dirRepo := directory.NewRepository(pool)

	catalog := authz.NewCachedCatalog(authz.NewPGCatalog(pool), redisClient, cfg.CatalogCacheTTL)
	store := authz.NewPGStore(pool)
	resolver := authz.NewResolver(dirRepo, store, catalog)
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}
	mutator := authz.NewMutator(store, catalog, resolver, logger)
	permissionsHandler := authz.NewHandler(logger, store, catalog, mutator, authzMiddleware)

	authService := auth.NewService(dirRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	entriesRepo := entries.NewPGRepository(pool)
	entriesService := entries.NewService(entriesRepo, resolver)
	entriesHandler := entries.NewHandler(logger, entriesService, dirRepo)

	evalRepo := evaluations.NewPGRepository(pool)
	evalService := evaluations.NewService(evalRepo, dirRepo, resolver)
	evalHandler := evaluations.NewHandler(logger, evalService)

	schedulesRepo := schedules.NewPGRepository(pool)
	schedulesService := schedules.NewService(schedulesRepo, resolver, logger)
	schedulesHandler := schedules.NewHandler(logger, schedulesService, dirRepo)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audithttp.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		EntriesHandler:     entriesHandler,
		EvaluationsHandler: evalHandler,
		SchedulesHandler:   schedulesHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		JobsHandler:        jobsHandler,
		AuthzMiddleware:    authzMiddleware,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
