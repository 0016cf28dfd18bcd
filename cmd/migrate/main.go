// Command migrate imports an existing JSON data directory into the SQLite
// database. It is safe to re-run: rows that already exist are skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gaunroots/internal/config"
	"gaunroots/internal/logging"
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

	dataDir := flag.String("data-dir", cfg.DataDir, "JSON data directory to import")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	ctx := context.Background()

	sqliteStore, err := store.NewSQLiteStore(ctx, *dbPath, logger)
	if err != nil {
		return fmt.Errorf("init sqlite store: %w", err)
	}
	defer sqliteStore.Close()

	if err := sqliteStore.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	sum, err := sqliteStore.ImportJSON(ctx, *dataDir)
	if err != nil {
		return fmt.Errorf("import json data: %w", err)
	}

	logger.Info("import complete",
		"users", sum.Users,
		"friend_links", sum.FriendLinks,
		"products", sum.Products,
		"disease_reports", sum.Reports,
		"alert_registrations", sum.Alerts,
		"detection_records", sum.Detections,
		"database", *dbPath)
	return nil
}
