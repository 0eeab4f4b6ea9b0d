package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/field"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/syncjob"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	validate := validator.New()
	fieldClient := field.NewClient(cfg.FieldBaseURL, cfg.FieldAPIKey, cfg.FieldHTTPTimeout)
	erpRepo := erp.NewRepository(pool)
	queueRepo := syncjob.NewRepository(pool)

	handlers := map[syncjob.EntityType]syncjob.Handler{
		syncjob.EntityCustomer:     syncjob.NewCustomerHandler(fieldClient, erpRepo, validate),
		syncjob.EntityEquipment:    syncjob.NewEquipmentHandler(fieldClient, erpRepo, validate),
		syncjob.EntityServiceOrder: syncjob.NewOrderHandler(fieldClient, erpRepo, validate),
	}

	drainWorker := syncjob.NewWorker(queueRepo, erpRepo, handlers, syncjob.WorkerConfig{
		BatchSize:  cfg.Sync.BatchSize,
		TickBudget: cfg.Sync.TickBudget,
		CallDelay:  cfg.Sync.CallDelay,
		Backoff:    cfg.Sync.Backoff,
		StuckAfter: cfg.Sync.StuckAfter,
	}, logger)

	drainTask, err := jobs.NewSyncDrainTask(time.Now().UTC())
	if err != nil {
		logger.Error("build drain task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSyncDrain, Handler: jobs.NewSyncDrainHandler(drainWorker, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: drainTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
