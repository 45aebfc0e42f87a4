package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-events/meridian-beo/internal/app"
	"github.com/meridian-events/meridian-beo/internal/document"
	"github.com/meridian-events/meridian-beo/internal/notify"
	"github.com/meridian-events/meridian-beo/internal/orders"
	"github.com/meridian-events/meridian-beo/internal/platform/cache"
	"github.com/meridian-events/meridian-beo/internal/platform/db"
	"github.com/meridian-events/meridian-beo/internal/platform/storage"
	"github.com/meridian-events/meridian-beo/internal/roles"
	"github.com/meridian-events/meridian-beo/internal/shared"
	"github.com/meridian-events/meridian-beo/jobs"
	"github.com/meridian-events/meridian-beo/report"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, generation locks are process-local", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	store, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		logger.Error("init blob storage", slog.Any("error", err))
		os.Exit(1)
	}

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}

	generator := document.NewGenerator(pdfClient, store, logger, cfg.LogoLeftPaths, cfg.LogoRightPaths)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	directory := roles.NewDirectory(pool, redisClient, cfg.RoleCacheTTL, logger)
	notifier := notify.NewNotifier(directory, queue, logger)
	transitions := shared.NewTransitionRecorder(pool, logger)
	auditor := shared.NewAuditLogger(pool)

	repo := orders.NewRepository(pool)
	service := orders.NewService(repo, store, generator, notifier, transitions, auditor,
		orders.RedisLockFactory(redisClient, cfg.DocumentLock), logger)
	handler := orders.NewHandler(logger, service)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		OrdersHandler: handler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
