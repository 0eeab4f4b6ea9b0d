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

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/erp"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/matching"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/webhook"
	"github.com/meridian-erp/meridian-erp/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	validate := validator.New()
	auditLogger := audit.NewLogger(pool)
	erpRepo := erp.NewRepository(pool)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger)
	webhookService := webhook.NewService(erpRepo, inventoryService, auditLogger, logger)
	webhookHandler := webhook.NewHandler(logger, webhookService, cfg.FieldWebhookSecret)

	matchingService := matching.NewService(
		matching.NewRepository(pool),
		erpRepo,
		matchWeights(cfg.Match),
		auditLogger,
		logger,
	)
	matchingHandler := matching.NewHandler(logger, matchingService, validate)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		WebhookHandler:  webhookHandler,
		MatchingHandler: matchingHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}

func matchWeights(cfg app.MatchConfig) matching.Weights {
	return matching.Weights{
		NameExact:        cfg.NameExact,
		NameStrong:       cfg.NameStrong,
		NameMedium:       cfg.NameMedium,
		NameWeak:         cfg.NameWeak,
		City:             cfg.City,
		State:            cfg.State,
		Street:           cfg.Street,
		StreetNumber:     cfg.StreetNumber,
		PostalExact:      cfg.PostalExact,
		PostalPrefix:     cfg.PostalPrefix,
		Document:         cfg.Document,
		StreetSimilarity: cfg.StreetSimilarity,
		AutoLinkScore:    cfg.AutoLinkScore,
		ReviewScore:      cfg.ReviewScore,
	}
}
