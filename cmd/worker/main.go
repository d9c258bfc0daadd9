package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"schoolhouse/api/internal/cache"
	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/log"
	"schoolhouse/api/internal/queue"
	"schoolhouse/api/internal/storage"
	"schoolhouse/api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid worker configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := tasks.NewProcessor(objectStore, logger)
	consumer := queue.NewConsumer(client, queue.ConsumerOptions{
		Stream:            cfg.Worker.Stream,
		Group:             cfg.Worker.Group,
		Consumer:          cfg.Worker.Consumer,
		Block:             cfg.Worker.Block,
		ClaimInterval:     cfg.Worker.ClaimInterval,
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
	}, logger, processor)

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
