// Package main runs the class dispatcher HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/dispatcher/config"
	"github.com/aura-webinar/dispatcher/internal/auth"
	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/middleware"
	"github.com/aura-webinar/dispatcher/internal/pipeline"
	"github.com/aura-webinar/dispatcher/internal/recordings"
	"github.com/aura-webinar/dispatcher/pkg/database"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/redis"
	"github.com/aura-webinar/dispatcher/pkg/response"
	"github.com/aura-webinar/dispatcher/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// External service clients
	timeout := cfg.Services.Timeout()
	conferenceClient := clients.NewConferenceClient(clients.Options{
		BaseURL: cfg.Services.ConferenceBaseURL, Token: cfg.Services.Token, Timeout: timeout,
	}, logger)
	eventClient := clients.NewEventClient(clients.Options{
		BaseURL: cfg.Services.EventBaseURL, Token: cfg.Services.Token, Timeout: timeout,
	}, logger)

	// Classes
	classRepo := classes.NewRepository(pool)
	classService := classes.NewService(classRepo, conferenceClient, eventClient, logger)
	recordingRepo := recordings.NewRepository(pool)
	classHandler := classes.NewHandler(classRepo, classService, recordingRepo, eventClient, s3Client, logger)

	// Pipeline webhook -> job queue (processed by cmd/worker)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	pipelineWebhook := pipeline.NewWebhookHandler(classRepo, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("/api/v1")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/classes/:kind", classHandler.Create)
		api.GET("/classes/:kind/:id", classHandler.GetByID)
		api.PATCH("/classes/:kind/:id", classHandler.Update)
		api.POST("/classes/:kind/:id/recreate", classHandler.Recreate)
		api.GET("/classes/:kind/:id/recordings", classHandler.ListRecordings)
		api.GET("/classes/:kind/:id/download", classHandler.DownloadURL)
		api.POST("/classes/:kind/:id/events", classHandler.CreateEvent)
		api.GET("/audiences/:audience/classes/:kind/:scope", classHandler.GetByScope)
	}

	// Webhooks (service token validated by the same JWT middleware)
	router.POST("/webhooks/pipeline", middleware.JWT(jwtService), pipelineWebhook.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
