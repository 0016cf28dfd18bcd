package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gaunroots/internal/alerts"
	"gaunroots/internal/cache"
	"gaunroots/internal/classifier"
	"gaunroots/internal/config"
	"gaunroots/internal/httpserver"
	"gaunroots/internal/ledger"
	"gaunroots/internal/logging"
	"gaunroots/internal/mailer"
	"gaunroots/internal/market"
	"gaunroots/internal/metrics"
	"gaunroots/internal/store"
	"gaunroots/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting gaun-roots", "env", cfg.AppEnv, "storage", cfg.StorageBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var recordStore store.Store
	switch cfg.StorageBackend {
	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		if err := sqliteStore.RunMigrations(ctx, migrations.Files); err != nil {
			sqliteStore.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrated", "path", cfg.DatabasePath)
		recordStore = sqliteStore
	default:
		jsonStore, err := store.NewJSONStore(cfg.DataDir, logger)
		if err != nil {
			return fmt.Errorf("init json store: %w", err)
		}
		recordStore = jsonStore
	}
	defer recordStore.Close()

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	sender := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Address:  cfg.EmailAddress,
		Password: cfg.EmailPassword,
	}, logger, metricRegistry)
	if !sender.Enabled() {
		logger.Warn("email credentials not configured, alert delivery disabled")
	}

	ledgerService := ledger.New(recordStore, ledger.Config{
		TokenPrice: cfg.TokenPrice,
	}, logger, metricRegistry)

	marketService := market.New(recordStore, logger)

	alertService := alerts.New(recordStore, sender, redisClient, alerts.Config{
		DefaultLocation: cfg.DefaultLocation,
		CommunityEmail:  cfg.CommunityEmail,
		CacheTTL:        cfg.RecentAlertsCacheTTL,
	}, logger, metricRegistry)

	diseaseClassifier := classifier.New(classifier.Config{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ONNXRuntimeLib,
		InputName:   cfg.ModelInputName,
		OutputName:  cfg.ModelOutputName,
	}, logger, metricRegistry)
	defer diseaseClassifier.Close()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Dependencies{
		Store:      recordStore,
		Ledger:     ledgerService,
		Market:     marketService,
		Alerts:     alertService,
		Classifier: diseaseClassifier,
	}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
