package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"schoolhouse/api/internal/cache"
	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/database"
	"schoolhouse/api/internal/handlers"
	"schoolhouse/api/internal/jobs"
	"schoolhouse/api/internal/log"
	"schoolhouse/api/internal/queue"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/security"
	"schoolhouse/api/internal/server"
	"schoolhouse/api/internal/service"
	"schoolhouse/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	db, err := database.NewGorm(dbPool, logger, cfg.Postgres.LogQueries)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open gorm")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	store := repository.NewStore(db)
	sessions := repository.NewSessionRepository(dbPool)
	hasher := security.NewHasher(security.DefaultParams)
	throttle := cache.NewLoginThrottle(redisClient, cfg.Security.LoginMaxAttempts, cfg.Security.LoginLockout)
	signer := security.MediaURLSigner{Secret: cfg.Security.MediaURLSecret, TTL: cfg.Security.MediaURLTTL}
	cleanup := queue.NewProducer(redisClient, cfg.Media.CleanupStream)

	users := service.NewUserService(store, hasher, sessions, logger)
	svc := handlers.Services{
		Auth:         service.NewAuthService(users, store, sessions, throttle, hasher, cfg.Security, logger),
		Users:        users,
		Roles:        service.NewRoleService(store, logger),
		Staff:        service.NewStaffService(store, logger),
		Schoolhouses: service.NewSchoolhouseService(store, logger),
		Instructors:  service.NewInstructorService(store, logger),
		Classes:      service.NewClassService(store, logger),
		Media:        service.NewMediaService(store, objectStore, cleanup, signer, cfg.Media.MaxUploadBytes, logger),
		Public:       service.NewPublicService(store),
		Audit:        store.Audit,
	}

	if err := users.EnsureBootstrapAdmin(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap admin failed")
	}

	identity := handlers.Identity{Users: store.Users, Roles: store.Roles, Sessions: sessions}
	checks := map[string]handlers.HealthCheck{
		"database": dbPool.Ping,
		"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"storage":  objectStore.Ping,
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, svc, identity, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(sessions, cfg.Jobs.SessionPruneSpec, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		wait := scheduler.Stop()
		wait()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
