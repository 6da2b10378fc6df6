package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smartcampus/api/internal/cache"
	"smartcampus/api/internal/config"
	"smartcampus/api/internal/database"
	"smartcampus/api/internal/handlers"
	"smartcampus/api/internal/jobs"
	"smartcampus/api/internal/log"
	"smartcampus/api/internal/mail"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
	"smartcampus/api/internal/security"
	"smartcampus/api/internal/server"
	"smartcampus/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	userRepo := repository.NewUserRepository(dbPool)
	roleRepo := repository.NewRoleRepository(dbPool)
	tokenRepo := repository.NewTokenRepository(dbPool)

	if err := roleRepo.EnsureDefaults(ctx, models.DefaultRoles()); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed roles")
	}

	sessions, err := security.NewSessionIssuer(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build session issuer")
	}
	hasher := security.NewArgon2Hasher(security.ParamsFromConfig(cfg.Security.Argon2))

	mailer, err := newMailer(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build mailer")
	}

	verification := service.NewVerificationService(userRepo, tokenRepo, hasher, cfg.Security, logger)
	throttle := cache.NewLoginThrottle(redisClient, cfg.Security.MaxLoginFailures, cfg.Security.LoginLockout)
	authService := service.NewAuthService(userRepo, roleRepo, verification, hasher, sessions, mailer, throttle, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Auth:       authService,
		Admin:      service.NewUserService(userRepo, logger),
		Sessions:   sessions,
		UserLookup: userRepo,
		Checks: map[string]handlers.HealthCheck{
			"database": dbPool.Ping,
			"cache": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(tokenRepo, cfg.Jobs.TokenPurgeSchedule, logger)
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

func newMailer(cfg *config.AppConfig, redisClient *redis.Client) (mail.Mailer, error) {
	if cfg.Mail.Mode == config.MailModeQueue {
		return mail.NewQueueMailer(redisClient, cfg.Mail.Stream), nil
	}
	smtpMailer, err := mail.NewSMTPMailer(cfg.Mail)
	if err != nil {
		return nil, err
	}
	return smtpMailer, nil
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

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
