// Package main runs the post-processing pipeline worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/dispatcher/config"
	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/events"
	"github.com/aura-webinar/dispatcher/internal/postprocessing"
	"github.com/aura-webinar/dispatcher/internal/recordings"
	"github.com/aura-webinar/dispatcher/internal/worker"
	"github.com/aura-webinar/dispatcher/pkg/database"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	timeout := cfg.Services.Timeout()
	eventClient := clients.NewEventClient(clients.Options{
		BaseURL: cfg.Services.EventBaseURL, Token: cfg.Services.Token, Timeout: timeout,
	}, logger)
	tqClient := clients.NewTqClient(clients.Options{
		BaseURL: cfg.Services.TqBaseURL, Token: cfg.Services.Token, Timeout: timeout,
	}, logger)

	classRepo := classes.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	publisher := events.NewRedisPublisher(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	processor := worker.NewPipelineProcessor(classRepo, postprocessing.Deps{
		Store:           recordingRepo,
		Event:           eventClient,
		Tq:              tqClient,
		Publisher:       publisher,
		Logger:          logger,
		PrerollOffsetMs: cfg.Services.PrerollOffsetMs,
	}, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("pipeline worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
