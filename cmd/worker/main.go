package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/riskdesk/internal/app"
	jobmetrics "github.com/odyssey-erp/riskdesk/internal/jobs"
	"github.com/odyssey-erp/riskdesk/internal/listcache"
	"github.com/odyssey-erp/riskdesk/internal/overview"
	"github.com/odyssey-erp/riskdesk/internal/platform/cache"
	"github.com/odyssey-erp/riskdesk/jobs"
)

const overviewWarmSchedule = "*/10 * * * *"

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

	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))

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

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open data source", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	if _, err := backend.ServiceCredential(); err != nil {
		logger.Warn("overview warm has no service credential; runs will fail", slog.Any("error", err))
	}

	overviewCache := listcache.New(redisClient, cfg.OverviewTTL, listcache.WithLogger(logger))
	overviewService := overview.NewService(backend.Source, overviewCache, logger)
	warmJob := jobs.NewOverviewWarmJob(overviewService, backend.ServiceCredential, logger, jobmetrics.NewMetrics(nil))

	warmTask, err := jobs.NewOverviewWarmTask("schedule")
	if err != nil {
		logger.Error("build overview warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: jobs.RedisOpt(redisClient.Options()),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverviewWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: overviewWarmSchedule, Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("schedule", overviewWarmSchedule))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
