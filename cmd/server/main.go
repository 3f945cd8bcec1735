package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Infrastructure
	"github.com/sogos/mirai-scheduler/internal/infrastructure/clock"
	"github.com/sogos/mirai-scheduler/internal/infrastructure/config"
	"github.com/sogos/mirai-scheduler/internal/infrastructure/logging"
	"github.com/sogos/mirai-scheduler/internal/infrastructure/persistence/postgres"
	"github.com/sogos/mirai-scheduler/internal/infrastructure/pubsub"
	"github.com/sogos/mirai-scheduler/internal/infrastructure/worker"

	// Domain
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"

	// Application services
	"github.com/sogos/mirai-scheduler/internal/application/service"

	// Presentation
	"github.com/sogos/mirai-scheduler/internal/presentation/httpapi"
)

func main() {
	logger := logging.New()
	logger.Info("starting mirai scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "path", cfg.MigrationsPath)
	}

	// Repositories
	_ = postgres.NewUserRepository(db.DB)
	taskTypeRepo := postgres.NewTaskTypeRepository(db.DB)
	taskRepo := postgres.NewTaskRepository(db.DB)
	workerRepo := postgres.NewWorkerRepository(db.DB)
	generationRepo := postgres.NewGenerationRepository(db.DB)
	analysisRepo := postgres.NewAnalysisRepository(db.X)
	txManager := postgres.NewTxManager(db.DB)

	sysClock := clock.New()

	// Claim-availability notification bus: Redis pub/sub when
	// configured, a no-op fallback otherwise.
	var notifier domainservice.ClaimNotifier
	if cfg.EnableRedisPubSub {
		redisPubSub, err := pubsub.NewRedisPubSub(pubsub.RedisConfig{URL: cfg.RedisURL}, logger)
		if err != nil {
			logger.Warn("failed to initialize Redis pub/sub, claim notifications disabled", "error", err)
			notifier = pubsub.NewNoOpPubSub()
		} else {
			notifier = redisPubSub
			logger.Info("Redis pub/sub initialized for claim-availability notifications")
		}
	} else {
		notifier = pubsub.NewNoOpPubSub()
		logger.Warn("Redis pub/sub disabled, claim notifications disabled")
	}

	// Application engines
	claimEngine := service.NewClaimEngine(taskRepo, workerRepo, sysClock, logger)
	countEngine := service.NewCountEngine(analysisRepo)
	shotLinkEngine := service.NewShotLinkEngine(txManager)
	completionEngine := service.NewCompletionEngine(taskRepo, taskTypeRepo, generationRepo, shotLinkEngine, service.IdentityNormalizer{}, logger)
	transitionEngine := service.NewTransitionEngine(taskRepo, taskTypeRepo, completionEngine, notifier, logger)

	// HTTP admission surface
	handler := httpapi.NewHandler(claimEngine, countEngine, transitionEngine, shotLinkEngine, logger, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background maintenance jobs: stuck-task sweep, worker heartbeat reap.
	redisAddr := strings.TrimPrefix(cfg.RedisURL, "redis://")
	workerHandlers := worker.NewHandlers(
		taskRepo,
		workerRepo,
		sysClock,
		time.Duration(cfg.StuckTaskTimeoutMinutes)*time.Minute,
		time.Duration(cfg.WorkerHeartbeatTimeoutMins)*time.Minute,
		logger,
	)
	workerServer := worker.NewServer(redisAddr, workerHandlers, logger)

	go func() {
		if err := workerServer.Run(); err != nil {
			logger.Error("scheduler worker server error", "error", err)
		}
	}()
	logger.Info("scheduler worker server started")

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	workerServer.Shutdown()
	logger.Info("scheduler worker server stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
