package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vorbereitung/api/internal/cache"
	"vorbereitung/api/internal/config"
	"vorbereitung/api/internal/database"
	"vorbereitung/api/internal/handlers"
	"vorbereitung/api/internal/ids"
	"vorbereitung/api/internal/jobs"
	"vorbereitung/api/internal/log"
	"vorbereitung/api/internal/models"
	"vorbereitung/api/internal/repository"
	"vorbereitung/api/internal/security"
	"vorbereitung/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	seedDefaultAdmin(ctx, dbPool, cfg, logger)

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(
		cfg.Jobs.SessionCleanupSpec,
		repository.NewSettingRepository(dbPool),
		repository.NewSessionRepository(dbPool),
		logger,
	)
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

// seedDefaultAdmin makes sure an administrator account exists on first boot,
// so maintenance mode can never lock everyone out of a fresh install. The
// seed is skipped when no password is configured or the account is present.
func seedDefaultAdmin(ctx context.Context, db *pgxpool.Pool, cfg *config.AppConfig, logger zerolog.Logger) {
	if cfg.AdminSeed.Password == "" {
		return
	}

	users := repository.NewUserRepository(db)
	email := strings.ToLower(strings.TrimSpace(cfg.AdminSeed.Email))

	if _, err := users.FindByEmail(ctx, email); err == nil {
		return
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		logger.Error().Err(err).Msg("admin seed lookup failed")
		return
	}

	hash, err := security.HashPassword(cfg.AdminSeed.Password, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error().Err(err).Msg("admin seed hash failed")
		return
	}

	admin := models.User{
		ID:           ids.New(),
		Name:         "Admin",
		Surname:      "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		IsActive:     true,
		AccessB1:     true,
		AccessB2:     true,
		DeviceLimit:  1,
	}
	if err := users.Create(ctx, admin); err != nil {
		logger.Error().Err(err).Msg("admin seed create failed")
		return
	}

	logger.Info().Str("email", email).Msg("seeded default admin")
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
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		cancel := scheduler.Stop()
		cancel()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
