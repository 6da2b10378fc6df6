package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"smartcampus/api/internal/cache"
	"smartcampus/api/internal/config"
	"smartcampus/api/internal/log"
	"smartcampus/api/internal/mail"
	"smartcampus/api/internal/queue"
	"smartcampus/api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	mailer, err := mail.NewSMTPMailer(cfg.Mail)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build smtp mailer")
	}

	processor := tasks.NewProcessor(mailer, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Mail.Stream,
		cfg.Mail.Group,
		cfg.Mail.Consumer,
		cfg.Mail.ClaimInterval,
		cfg.Mail.MaxDeliveries,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Mail.Stream).Str("group", cfg.Mail.Group).Msg("mail worker starting")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("mail worker exited cleanly")
}
