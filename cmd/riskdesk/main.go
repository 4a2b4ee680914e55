package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/riskdesk/internal/app"
	authhttp "github.com/odyssey-erp/riskdesk/internal/auth/http"
	"github.com/odyssey-erp/riskdesk/internal/dashboard"
	"github.com/odyssey-erp/riskdesk/internal/dashboard/export"
	dashboardhttp "github.com/odyssey-erp/riskdesk/internal/dashboard/http"
	"github.com/odyssey-erp/riskdesk/internal/listcache"
	"github.com/odyssey-erp/riskdesk/internal/observability"
	"github.com/odyssey-erp/riskdesk/internal/overview"
	"github.com/odyssey-erp/riskdesk/internal/platform/cache"
	"github.com/odyssey-erp/riskdesk/internal/query"
	"github.com/odyssey-erp/riskdesk/internal/shared"
	"github.com/odyssey-erp/riskdesk/internal/view"
	"github.com/odyssey-erp/riskdesk/jobs"
	"github.com/odyssey-erp/riskdesk/report"
)

// warmingOverview queues a background rebuild whenever the cached overview
// is invalidated, so the next page load finds it warm.
type warmingOverview struct {
	*overview.Service
	jobs   *jobs.Client
	logger *slog.Logger
}

func (w warmingOverview) Invalidate(ctx context.Context) error {
	if err := w.Service.Invalidate(ctx); err != nil {
		return err
	}
	if _, err := w.jobs.EnqueueOverviewWarm(ctx, "status-change"); err != nil {
		w.logger.Warn("enqueue overview warm", slog.Any("error", err))
	}
	return nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()

	overviewCache := listcache.New(redisClient, cfg.OverviewTTL,
		listcache.WithLogger(logger.With(slog.String("component", "listcache"))),
		listcache.WithLookupHook(metrics.CacheLookup),
	)
	if err := overviewCache.ListenForInvalidation(ctx, listcache.BumpChannel); err != nil {
		logger.Warn("listen for cache invalidation", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, "riskdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := jobs.RedisOpt(redisClient.Options())
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	overviews := warmingOverview{
		Service: overview.NewService(backend.Source, overviewCache, logger.With(slog.String("component", "overview"))),
		jobs:    jobClient,
		logger:  logger,
	}

	registry := dashboard.NewRegistry(backend.Source, cfg.ControllerIdleTTL,
		dashboard.WithLogger(logger.With(slog.String("component", "registry"))),
		dashboard.WithGauge(metrics.SetControllers),
		dashboard.WithControllerOptions(query.WithObserver(metrics)),
	)
	go registry.Run(ctx, time.Minute)

	reportClient := report.NewClient(cfg.GotenbergURL, report.WithTimeout(cfg.AppWriteTimeout))
	reportHandler := report.NewHandler(reportClient, logger)
	pdfExporter := export.NewPDFExporter(reportClient)

	authHandler := authhttp.NewHandler(logger, backend.Source, templates, sessionManager, csrfManager, registry.Forget)
	dashboardHandler := dashboardhttp.NewHandler(logger, registry, backend.Source, overviews, templates, csrfManager, pdfExporter, cfg.SettleWait)
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		ReportHandler:    reportHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("source", cfg.SourceMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
